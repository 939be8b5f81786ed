package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/persistorai/spacestore/internal/models"
	"github.com/persistorai/spacestore/internal/service"
)

// writeFlags are the policy flags of the write command.
type writeFlags struct {
	id           string
	author       string
	onExists     string
	onNotExists  string
	onConflict   string
	spaceContext string
	baseVersion  int64
	partial      bool
	del          bool
	addTags      []string
	removeTags   []string
}

// request builds a WriteRequest. baseSet reports whether --base-version was
// given on the command line.
func (f *writeFlags) request(spaceID string, feature models.Feature, baseSet bool) (models.WriteRequest, error) {
	req := models.WriteRequest{
		SpaceID:    spaceID,
		Feature:    feature,
		Author:     f.author,
		Partial:    f.partial,
		Delete:     f.del,
		AddTags:    f.addTags,
		RemoveTags: f.removeTags,
	}
	if f.id != "" {
		req.Feature.ID = f.id
	}

	var err error
	if f.onExists != "" {
		if req.OnExists, err = models.ParseOnExists(f.onExists); err != nil {
			return req, err
		}
	}
	if f.onNotExists != "" {
		if req.OnNotExists, err = models.ParseOnNotExists(f.onNotExists); err != nil {
			return req, err
		}
	}
	if req.OnVersionConflict, err = models.ParseOnVersionConflict(f.onConflict); err != nil {
		return req, err
	}
	if f.spaceContext != "" {
		if req.SpaceContext, err = models.ParseSpaceContext(f.spaceContext); err != nil {
			return req, err
		}
	}
	if baseSet {
		base := f.baseVersion
		req.BaseVersion = &base
	}

	return req, nil
}

// readFeature decodes one GeoJSON feature from path, or stdin for "-".
func readFeature(path string, stdin io.Reader) (models.Feature, error) {
	var feature models.Feature

	r := stdin
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // operator-supplied input file.
		if err != nil {
			return feature, fmt.Errorf("open feature: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return feature, fmt.Errorf("read feature: %w", err)
	}

	if err := feature.UnmarshalJSON(data); err != nil {
		return feature, fmt.Errorf("parse feature: %w", err)
	}

	return feature, nil
}

type writeOutput struct {
	Disposition string                `json:"disposition"`
	Record      *models.VersionRecord `json:"record,omitempty"`
}

func newWriteCmd() *cobra.Command {
	var f writeFlags
	cmd := &cobra.Command{
		Use:   "write <space> [file|-]",
		Short: "Write one GeoJSON feature",
		Long: "Reads a GeoJSON feature from file, or from stdin when the file is omitted or '-', and " +
			"writes it as the next version. With --delete and --id no input is read.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var feature models.Feature
			switch {
			case len(args) == 2:
				var err error
				if feature, err = readFeature(args[1], cmd.InOrStdin()); err != nil {
					return err
				}
			case !f.del || f.id == "":
				var err error
				if feature, err = readFeature("-", cmd.InOrStdin()); err != nil {
					return err
				}
			}

			req, err := f.request(args[0], feature, cmd.Flags().Changed("base-version"))
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.features(cmd.Context(), func(svc *service.FeatureService) error {
				res, err := svc.WriteFeature(cmd.Context(), req)
				if err != nil {
					return err
				}

				out := writeOutput{Disposition: res.Disposition.String(), Record: res.Record}
				table := &tableView{headers: append([]string{"DISPOSITION"}, recordHeaders...)}
				quiet := ""
				if res.Record != nil {
					table.rows = [][]string{append([]string{out.Disposition}, recordRow(res.Record)...)}
					quiet = strconv.FormatInt(res.Record.Version, 10)
				}

				return output(cmd.OutOrStdout(), out, table, quiet)
			})
		},
	}

	cmd.Flags().StringVar(&f.id, "id", "", "Feature id, overriding the id of the input")
	cmd.Flags().StringVar(&f.author, "author", "", "Author of the version")
	cmd.Flags().StringVar(&f.onExists, "on-exists", "", "REPLACE|DELETE|RETAIN|ERROR (default REPLACE)")
	cmd.Flags().StringVar(&f.onNotExists, "on-not-exists", "", "CREATE|ERROR|RETAIN (default CREATE)")
	cmd.Flags().StringVar(&f.onConflict, "on-version-conflict", "", "ERROR|RETAIN|REPLACE|MERGE")
	cmd.Flags().StringVar(&f.spaceContext, "context", "", "DEFAULT|SUPER|EXTENSION")
	cmd.Flags().Int64Var(&f.baseVersion, "base-version", 0, "Version the write is based on")
	cmd.Flags().BoolVar(&f.partial, "partial", false, "Merge the input into the head as a patch")
	cmd.Flags().BoolVar(&f.del, "delete", false, "Delete the feature")
	cmd.Flags().StringSliceVar(&f.addTags, "add-tag", nil, "Tag to add (repeatable)")
	cmd.Flags().StringSliceVar(&f.removeTags, "remove-tag", nil, "Tag to remove (repeatable)")

	return cmd
}

func newGetCmd() *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "get <space> <id>",
		Short: "Get the live head of a feature, or one version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.features(cmd.Context(), func(svc *service.FeatureService) error {
				rec, err := getRecord(cmd.Context(), svc, args[0], args[1], version)
				if err != nil {
					return err
				}

				return output(cmd.OutOrStdout(), rec, &tableView{
					headers: recordHeaders,
					rows:    [][]string{recordRow(rec)},
				}, strconv.FormatInt(rec.Version, 10))
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "Version to read instead of the head")

	return cmd
}

func getRecord(ctx context.Context, svc *service.FeatureService, spaceID, featureID string, version int64) (*models.VersionRecord, error) {
	if version > 0 {
		return svc.GetVersion(ctx, spaceID, featureID, version)
	}
	return svc.GetFeature(ctx, spaceID, featureID)
}

type historyOutput struct {
	Versions []models.VersionRecord `json:"versions"`
	HasMore  bool                   `json:"has_more"`
}

func newHistoryCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history <space> <id>",
		Short: "List the versions of a feature, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.features(cmd.Context(), func(svc *service.FeatureService) error {
				versions, hasMore, err := svc.History(cmd.Context(), args[0], args[1], models.HistoryOpts{Limit: limit, Offset: offset})
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(versions))
				for i := range versions {
					rows = append(rows, recordRow(&versions[i]))
				}

				return output(cmd.OutOrStdout(), historyOutput{Versions: versions, HasMore: hasMore},
					&tableView{headers: recordHeaders, rows: rows}, strconv.Itoa(len(versions)))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum versions to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Versions to skip")

	return cmd
}

package config

// Version is the spacestore binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/spacestore/internal/config.Version=<tag>"
var Version = "dev"

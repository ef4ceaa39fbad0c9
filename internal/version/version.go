package version

// Version is set at build time via -ldflags.
var Version = "v0.1.0-dev"

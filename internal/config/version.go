package config

// Version is the neon binary version.
// Set at build time via: -ldflags "-X github.com/neonviz/neon/internal/config.Version=<tag>"
var Version = "dev"

package version

// Version is set via ldflags at build time:
// go build -ldflags "-X github.com/365businessdev/alget/internal/version.Version=v0.1.0"
var Version = "dev"

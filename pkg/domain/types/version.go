package types

// Version is the application version reported by the CLI and the health endpoint.
var Version = "dev"

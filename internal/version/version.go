package version

// Version is the application version reported by /health.
const Version = "0.1.0"

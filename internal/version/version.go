package version

// Version is the server version reported by the health endpoint.
const Version = "0.4.1"

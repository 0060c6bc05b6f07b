package slidepreview

// Version is the library release.
const Version = "0.3.0"

// userAgent identifies outgoing requests to parsing services and font hosts.
const userAgent = "SlidePreview/" + Version

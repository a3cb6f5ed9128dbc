package model

// DeliveryVia states which tier actually delivered a document.
type DeliveryVia string

const (
	// ViaArchive means an already-posted copy was forwarded (tier 0).
	ViaArchive DeliveryVia = "archive"
	// ViaCache means a stored transport handle was resent (tier 1).
	ViaCache DeliveryVia = "cache"
	// ViaUpload means the bytes were fetched from origin and uploaded (tier 2).
	ViaUpload DeliveryVia = "upload"
	// ViaLink means the document exceeded the attachment limit and the
	// user got an external download link instead. Still a success.
	ViaLink DeliveryVia = "link"
)

// DeliveryOutcome is the terminal result of a successful delivery.
type DeliveryOutcome struct {
	Via DeliveryVia
}

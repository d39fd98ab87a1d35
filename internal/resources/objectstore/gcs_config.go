package objectstore

// GCSConfig configures the GCS backend (internal/resources/objectstore/gcs.go,
// built only with -tags gcp). Declared without a build tag so the factory
// and the !gcp stub can both reference it regardless of which GCS backend
// is actually linked in.
type GCSConfig struct {
	Bucket string
	Prefix string
	// SignerServiceAccount and SignerKeyPath back the PUT-presigning V4
	// signature; both come from the GCS_SIGNER_SERVICE_ACCOUNT /
	// GCS_SIGNER_KEY_PATH env vars and are only required if the GCS
	// backend is selected.
	SignerServiceAccount string
	SignerKeyPath        string
}

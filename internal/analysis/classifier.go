package analysis

import "compactpdf/internal/domain/compression"

// Classifier flags documents that deserve the specialized compression pass.
type Classifier func(profile compression.DocumentProfile) bool

const (
	certificateMaxPages       = 3
	certificateMaxTextPerPage = 200
)

// LooksLikeCertificate matches short, image-bearing documents with little text per page
// or with certificate vocabulary.
func LooksLikeCertificate(profile compression.DocumentProfile) bool {
	if profile.PageCount == 0 || profile.PageCount > certificateMaxPages || !profile.HasImages() {
		return false
	}
	if len(profile.Keywords) > 0 {
		return true
	}
	return profile.TextLength/profile.PageCount < certificateMaxTextPerPage
}

// Never disables the specialized pass.
func Never(compression.DocumentProfile) bool { return false }

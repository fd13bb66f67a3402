package generation

// Placeholder returns the image stored in place of a failed variation.
func Placeholder(url string) *Image {
	return &Image{URL: url, Model: "placeholder"}
}

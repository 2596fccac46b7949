package models

// Document is one readable file from a tenant's corpus partition.
type Document struct {
	// Source is the file name within the tenant partition (no path components).
	Source string `json:"source"`
	// Content is the extracted plain text of the file.
	Content string `json:"content"`
}

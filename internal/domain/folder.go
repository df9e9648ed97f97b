package domain

// FolderType is the policy for enumerating book units under a library root.
type FolderType string

const (
	// FolderTypeRoot treats each immediate child of the root as one book.
	FolderTypeRoot FolderType = "root"
	// FolderTypeAuthor expects one level of author folders, then books.
	FolderTypeAuthor FolderType = "author"
	// FolderTypeSingleFolder treats the folder itself as one book.
	FolderTypeSingleFolder FolderType = "single-folder"
	// FolderTypeSingleFile treats one audio file as one book.
	FolderTypeSingleFile FolderType = "single-file"
)

// RootFolder is one configured library root with its enumeration policy.
type RootFolder struct {
	Path string     `json:"path"`
	Type FolderType `json:"type"`
}

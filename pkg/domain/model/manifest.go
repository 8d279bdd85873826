package model

// VersionManifest maps package names to version strings
type VersionManifest map[string]string

// PackageVersion is a package added between two manifests
type PackageVersion struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PackageUpdate describes the merges between two versions of one package
type PackageUpdate struct {
	Name       string   `json:"name"`
	Repository string   `json:"repository,omitempty"`
	Version1   string   `json:"version1"`
	Version2   string   `json:"version2"`
	Versions   []string `json:"versions"`
	Merges     []Merge  `json:"merges"`
}

// ChangeSummary is the changelog between two manifests
type ChangeSummary struct {
	New     []PackageVersion `json:"new"`
	Removed []string         `json:"removed"`
	Updates []PackageUpdate  `json:"updates"`

	// Failures lists repositories of updated packages that could not be fetched
	Failures []RepositoryFailure `json:"failures,omitempty"`
}

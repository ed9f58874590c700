package curseforge

// Mod is a CurseForge project (a modpack or a mod).
type Mod struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	LatestFiles []File `json:"latestFiles"`
}

// File is one downloadable file of a CurseForge project.
type File struct {
	ID           int      `json:"id"`
	FileName     string   `json:"fileName"`
	DownloadURL  string   `json:"downloadUrl"`
	GameVersions []string `json:"gameVersions"`
}

// Manifest is the manifest.json bundled inside a modpack archive.
type Manifest struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Minecraft struct {
		Version string `json:"version"`
	} `json:"minecraft"`
	Files []ManifestFile `json:"files"`
}

// ManifestFile references one mod the modpack depends on.
type ManifestFile struct {
	ProjectID int  `json:"projectID"`
	FileID    int  `json:"fileID"`
	Required  bool `json:"required"`
}

type searchResponse struct {
	Data []Mod `json:"data"`
}

type fileResponse struct {
	Data File `json:"data"`
}

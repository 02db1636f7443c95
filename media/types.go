package media

// AssetType identifies a class of stored artifact. Each type maps to its
// own subdirectory (local backend) or key prefix (remote backend).
type AssetType string

const (
	// AssetTypeWall holds uploaded room photos awaiting or past analysis
	AssetTypeWall AssetType = "walls"
	// AssetTypeDepth holds derived depth-map visualizations
	AssetTypeDepth AssetType = "depth"
	// AssetTypeMockup holds user-saved rendered mockup images
	AssetTypeMockup AssetType = "mockups"
)

package engine

// ApplicationConfig describes the scenario an application runs on the engine.
type ApplicationConfig struct {
	// The application name used in logs and as the Vulkan application name.
	Name string
	// Extents of the texture the application produces.
	Width  int
	Height int
	Depth  int
	// Source selects where the texture data comes from: "ndarray", "field"
	// or "image". An image source replaces the extents with the image's.
	Source string
	// Input is the image file read by the "image" source.
	Input string
	// Output is the file the readback is written to. Empty skips the dump.
	Output string
}

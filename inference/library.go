package inference

import (
	"os"
	"runtime"
)

// LibraryPathEnv overrides the onnxruntime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_LIB"

// GetSharedLibPath returns the onnxruntime shared library for this platform.
//
// Returns:
//   - string: $ONNXRUNTIME_LIB when set, otherwise the bundled third_party path.
func GetSharedLibPath() string {
	if p := os.Getenv(LibraryPathEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "./third_party/onnxruntime_arm64.so"
	}
	return "./third_party/onnxruntime.so"
}

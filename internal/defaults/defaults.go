// Package defaults holds the constant tables the sanitiser falls back to
// when a run does not supply its own lists.
package defaults

// MediaExtensions are the suffixes treated as media worth extracting.
// Derived from the common MIME types table (images, audio, video,
// documents, e-books); code, fonts and executables are left out.
var MediaExtensions = []string{
	// images
	".apng", ".avif", ".bmp", ".gif", ".heic", ".ico", ".jpeg", ".jpg",
	".png", ".svg", ".tif", ".tiff", ".webp",
	// audio
	".aac", ".cda", ".flac", ".m4a", ".mid", ".midi", ".mp3", ".oga",
	".opus", ".wav", ".weba", ".wma",
	// video
	".3g2", ".3gp", ".avi", ".m4v", ".mkv", ".mov", ".mp4", ".mpeg",
	".ogv", ".webm", ".wmv",
	// documents
	".abw", ".csv", ".doc", ".docx", ".odp", ".ods", ".odt", ".pdf",
	".ppt", ".pptx", ".rtf", ".vsd", ".xls", ".xlsx",
	// e-books
	".azw", ".epub",
}

// CommonJunkFiles are OS-generated cache files found on any user volume.
var CommonJunkFiles = []string{
	"Thumbs.db",
	"ehthumbs.db",
	"ehthumbs_vista.db",
	"desktop.ini",
	"Desktop.ini",
	".DS_Store",
	"._.DS_Store",
	".localized",
	".directory",
}

// SystemJunkFiles are paging, hibernation and crash-dump files written at
// the root of a Windows system volume.
var SystemJunkFiles = []string{
	"pagefile.sys",
	"hiberfil.sys",
	"swapfile.sys",
	"DumpStack.log",
	"DumpStack.log.tmp",
	"MEMORY.DMP",
}

// ExcludeDirsWindows are system-only directories, relative to a dumped
// Windows volume root, that never hold user media.
var ExcludeDirsWindows = []string{
	"$Recycle.Bin",
	"$RECYCLE.BIN",
	"$WinREAgent",
	"Boot",
	"Config.Msi",
	"MSOCache",
	"PerfLogs",
	"Program Files",
	"Program Files (x86)",
	"ProgramData",
	"Recovery",
	"System Volume Information",
	"Windows",
}

// SystemDir identifies a directory by its exact name plus a child
// directory that must exist beneath it.
type SystemDir struct {
	Name   string `yaml:"name" json:"name"`
	Marker string `yaml:"marker" json:"marker"`
}

// SystemDirs is the default signature list for system-directory removal.
var SystemDirs = []SystemDir{
	{Name: "WINDOWS", Marker: "system32"},
}

// Clone returns a copy so callers can never mutate the tables above.
func Clone[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

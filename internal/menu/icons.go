package menu

// icons is the fixed symbol set supported by the console shell. Names come
// straight from backend menu records.
var icons = map[string]string{
	"dashboard":    "⌂",
	"user":         "👤",
	"team":         "👥",
	"organization": "🏢",
	"role":         "🛡",
	"menu":         "☰",
	"dict":         "📖",
	"log":          "📋",
	"setting":      "⚙",
	"file":         "📄",
	"lock":         "🔒",
}

// IconFor maps a symbolic icon name to its glyph. Unknown names pass through
// unchanged and render as plain text.
func IconFor(name string) string {
	if glyph, ok := icons[name]; ok {
		return glyph
	}
	return name
}

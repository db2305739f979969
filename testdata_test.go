package main

// Fixture content shared by the handler tests.

const (
	testBookNEA = `{
  "chapters": [
    {"title": "Grundlagen", "sections": [
      {"ident": "ohm", "title": "Ohmsches Gesetz"},
      {"ident": "kirchhoff", "title": "Kirchhoff"},
      {"ident": "fehlt"}
    ]},
    {"sections": [{"ident": "messen", "title": "Messen"}]}
  ]
}`

	testSectionOhm = "# Ohmsches Gesetz\n\nSiehe [picture:42:Schaltung] und [photo:7:].\n"
	testSlideOhm   = "# Folie Ohm\n\n[picture:42:]\n"
	testKirchhoff  = "---\ntitle: Kirchhoff front matter\n---\nKnotenregel ohne Abbildung.\n"
	testMessen     = "# Messen\n\nMultimeter [picture:1420:Messgerät] und [picture:42:Schaltbild].\n"

	testSVG     = `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`
	testAltText = "Ein Widerstand in Reihe mit einer Spannungsquelle"
	testTeX     = `\draw (0,0) to[R] (2,0);`

	testMetadata = `{
  "Q1": {"directus_id": 101, "picture_question": "42"},
  "Q2": {"directus_id": 102, "picture_b": 42, "picture_d": "7"},
  "Q3": {"directus_id": 42, "picture_a": "1"}
}`

	// Markdown renderer inputs
	testMarkdownSimple        = "# Test"
	testMarkdownTable         = "| A | B |\n|---|---|\n| 1 | 2 |"
	testMarkdownCode          = "```go\nfunc main() {}\n```"
	testMarkdownStrikethrough = "~~deleted~~"
	testMarkdownTaskList      = "- [x] Done\n- [ ] Todo"
	testMarkdownScript        = "# Hi\n\n<script>alert(1)</script>\n\n<a href=\"javascript:alert(1)\">x</a>"

	// Security test paths
	testPathTraversal  = "../../../etc/passwd"
	testPathURLEncoded = "%2e%2e%2f%2e%2e%2fetc%2fpasswd"
	testPathNullByte   = "safe%00.svg"
)

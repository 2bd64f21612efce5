package parser

import (
	"regexp"
	"strings"

	"github.com/starford/taskboard/internal/models"
)

var slugRe = regexp.MustCompile(`^(.*?)\s*\(([^()]*)\)\s*$`)

// parseConfig reads the bold-labeled lines of the Configuration section.
func parseConfig(lines []string) *models.BoardConfig {
	cfg := &models.BoardConfig{}
	for _, l := range lines {
		m := labelRe.FindStringSubmatch(clean(l))
		if m == nil {
			continue
		}
		value := m[2]
		switch strings.ToLower(strings.TrimSpace(m[1])) {
		case "columns":
			for _, item := range splitTrim(value, "|") {
				col := models.Column{Name: item}
				if sm := slugRe.FindStringSubmatch(item); sm != nil {
					col = models.Column{Name: strings.TrimSpace(sm[1]), Slug: strings.TrimSpace(sm[2])}
				}
				cfg.Columns = append(cfg.Columns, col)
			}
		case "categories":
			cfg.Categories = splitTrim(value, ",")
		case "users":
			cfg.Users = splitTrim(value, ",")
		case "priorities":
			cfg.Priorities = splitTrim(value, "|")
		case "tags":
			cfg.Tags = strings.Fields(value)
		}
	}
	return cfg
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

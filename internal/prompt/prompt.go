// Package prompt provides the stage prompt templates for persona and script
// generation. Templates are plain text resources with {name} placeholders,
// embedded as defaults and overridable from a directory on disk so they can
// be versioned and tuned without a rebuild.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

//go:embed templates/*.txt
var embedded embed.FS

// Template file names inside the templates directory.
const (
	personaFile = "persona.txt"
	scriptFile  = "script.txt"
)

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Templates holds the loaded stage templates.
type Templates struct {
	persona string
	script  string
}

// Load returns the embedded default templates, overridden by files of the
// same name in dir when dir is non-empty and the file exists.
func Load(dir string) (*Templates, error) {
	persona, err := load(dir, personaFile)
	if err != nil {
		return nil, err
	}
	script, err := load(dir, scriptFile)
	if err != nil {
		return nil, err
	}
	return &Templates{persona: persona, script: script}, nil
}

func load(dir, name string) (string, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name)) // #nosec G304 - dir comes from config
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("prompt: read template %s: %w", name, err)
		}
	}
	data, err := embedded.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("prompt: embedded template %s: %w", name, err)
	}
	return string(data), nil
}

// PersonaParams are the inputs for the persona stage template.
type PersonaParams struct {
	ProductName        string
	ProductDescription string
	PersonDescription  string
}

// ScriptParams are the inputs for the script stage template.
type ScriptParams struct {
	ProductName        string
	ProductDescription string
	Persona            string
	Tone               string
}

// RenderPersona builds the persona stage prompt.
func (t *Templates) RenderPersona(p PersonaParams) (string, error) {
	return render(t.persona, map[string]string{
		"product_name":        p.ProductName,
		"product_description": p.ProductDescription,
		"person_description":  p.PersonDescription,
	})
}

// RenderScript builds the script stage prompt.
func (t *Templates) RenderScript(p ScriptParams) (string, error) {
	return render(t.script, map[string]string{
		"product_name":        p.ProductName,
		"product_description": p.ProductDescription,
		"persona":             p.Persona,
		"tone":                p.Tone,
	})
}

// render substitutes {name} placeholders. A placeholder with no value is an
// error so template drift is caught at dispatch time, not by the model.
func render(tmpl string, values map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt: missing template values: %v", missing)
	}
	return out, nil
}

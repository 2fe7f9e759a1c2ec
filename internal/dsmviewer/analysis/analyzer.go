// Package analysis ingests Go source trees into a DSM model: packages, types and
// functions become elements, imports, type uses and calls become relations.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/mod/modfile"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/config"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

// ErrSyntax marks a source file that parsed with errors. Its readable parts are
// still ingested.
var ErrSyntax = errors.New("syntax errors in source")

// Report summarizes an analysis run. One bad file or reference never stops the
// run; it is recorded in Failures instead.
type Report struct {
	Files     int
	Elements  int
	Relations int
	Excluded  int
	External  int // references to packages outside the analyzed tree
	Failures  []error
}

// Err returns the combined failures, or nil.
func (r *Report) Err() error {
	return errors.Join(r.Failures...)
}

// Analyzer feeds a model through the ingestion API. It must run before any
// interactive editing of the model starts.
type Analyzer struct {
	model  *model.Model
	cfg    *config.Config
	log    *logger.Logger
	parser *goParser
	report Report
}

func NewAnalyzer(m *model.Model, cfg *config.Config, log *logger.Logger) *Analyzer {
	if cfg == nil {
		c := config.DefaultConfig
		cfg = &c
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{model: m, cfg: cfg, log: log, parser: newGoParser()}
}

// excluded matches a dotted element name against the configured patterns. Names
// are matched with '/' as separator, so "**/mocks/**" excludes every element
// below any element called mocks.
func (a *Analyzer) excluded(name string) bool {
	slashed := strings.ReplaceAll(name, ".", "/")
	for _, pattern := range a.cfg.ExcludedNames {
		if ok, err := doublestar.Match(pattern, slashed); err == nil && ok {
			return true
		}
	}
	return false
}

func (a *Analyzer) fail(err error) {
	a.log.Warn("Analysis item skipped", "error", err)
	a.report.Failures = append(a.report.Failures, err)
}

// AddElement ingests an element by dotted full name. It returns nil when the name
// is excluded or invalid. context names the source the element was found in.
func (a *Analyzer) AddElement(name, typ, context string) *model.Element {
	if a.excluded(name) {
		a.report.Excluded++
		return nil
	}
	e, err := a.model.Elements().IngestElement(name, typ)
	if err != nil {
		a.fail(fmt.Errorf("element %q in %s: %w", name, context, err))
		return nil
	}
	return e
}

// AddRelation ingests a relation between two dotted names. Relations touching an
// excluded element are dropped; unresolvable ones are reported.
func (a *Analyzer) AddRelation(consumerName, providerName, typ string, weight int, context string) *model.Relation {
	if a.excluded(consumerName) || a.excluded(providerName) {
		a.report.Excluded++
		return nil
	}
	r, err := a.model.IngestRelation(consumerName, providerName, typ, weight, context)
	if err != nil {
		a.fail(fmt.Errorf("relation %s -> %s: %w", consumerName, providerName, err))
		return nil
	}
	return r
}

type parsedFile struct {
	path string
	pkg  string // element name of the package
	file *goFile
}

// Analyze walks rootDir and ingests every non-test Go file. Elements are created
// for all files first so that relations can resolve across packages.
func (a *Analyzer) Analyze(ctx context.Context, rootDir string) (*Report, error) {
	a.report = Report{}
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	module := readModulePath(root)
	rootName := segment(filepath.Base(root))

	paths, err := a.sourceFiles(root)
	if err != nil {
		return nil, err
	}

	var files []parsedFile
	known := make(map[string]bool)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			a.fail(err)
			continue
		}
		f, err := a.parser.parse(ctx, content)
		if err != nil {
			a.fail(fmt.Errorf("%s: %w", p, err))
			continue
		}
		if f.HasErrors {
			a.fail(fmt.Errorf("%s: %w", p, ErrSyntax))
		}
		a.report.Files++

		rel, _ := filepath.Rel(root, filepath.Dir(p))
		pkg := packageName(rootName, filepath.ToSlash(rel))
		if a.AddElement(pkg, "package", p) != nil {
			known[pkg] = true
		}
		for _, d := range f.Declarations {
			if d.Kind == "" {
				continue
			}
			name := pkg + "." + d.Name
			if a.AddElement(name, d.Kind, p) != nil {
				known[name] = true
			}
		}
		files = append(files, parsedFile{path: p, pkg: pkg, file: f})
	}

	for _, pf := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.addRelations(pf, module, rootName, known)
	}

	a.model.AddMetaData("analyzer", "root", root)
	a.model.AddMetaData("analyzer", "module", module)
	a.model.AddMetaData("analyzer", "files", fmt.Sprint(a.report.Files))
	a.report.Elements = a.model.Elements().ElementCount()
	a.report.Relations = a.model.Relations().RelationCount()
	a.log.Info("Analysis finished", "root", root, "files", a.report.Files, "elements", a.report.Elements,
		"relations", a.report.Relations, "excluded", a.report.Excluded, "failures", len(a.report.Failures))

	report := a.report
	return &report, nil
}

func (a *Analyzer) addRelations(pf parsedFile, module, rootName string, known map[string]bool) {
	internal := func(importPath string) (string, bool) {
		if module == "" {
			return "", false
		}
		if importPath == module {
			return rootName, true
		}
		if rel, ok := strings.CutPrefix(importPath, module+"/"); ok {
			return packageName(rootName, rel), true
		}
		return "", false
	}

	imported := make([]string, 0, len(pf.file.Imports))
	for _, importPath := range pf.file.Imports {
		imported = append(imported, importPath)
	}
	sort.Strings(imported)
	for _, importPath := range imported {
		target, ok := internal(importPath)
		if !ok || !known[target] {
			a.report.External++
			continue
		}
		if known[pf.pkg] && target != pf.pkg {
			a.AddRelation(pf.pkg, target, "import", 1, pf.path)
		}
	}

	for _, ref := range pf.file.References {
		consumer := pf.pkg + "." + ref.From
		var provider string
		if ref.Package == "" {
			provider = pf.pkg + "." + ref.Name
		} else {
			target, ok := internal(ref.Package)
			if !ok {
				a.report.External++
				continue
			}
			provider = target + "." + ref.Name
		}
		// Unknown local names are builtins, locals or methods; not dependencies.
		if consumer == provider || !known[consumer] || !known[provider] {
			continue
		}
		a.AddRelation(consumer, provider, ref.Kind, 1, pf.path)
	}
}

func (a *Analyzer) sourceFiles(root string) ([]string, error) {
	skip := make(map[string]bool, len(a.cfg.ExcludedDirs))
	for _, d := range a.cfg.ExcludedDirs {
		skip[d] = true
	}
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && (skip[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(p, ".go") && !strings.HasSuffix(p, "_test.go") {
			paths = append(paths, p)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

func readModulePath(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// packageName maps a slash separated directory below the root to a dotted element name.
func packageName(rootName, rel string) string {
	parts := []string{rootName}
	if rel != "." && rel != "" {
		for _, p := range strings.Split(rel, "/") {
			parts = append(parts, segment(p))
		}
	}
	return strings.Join(parts, ".")
}

// segment makes a path element usable as one element name.
func segment(s string) string {
	return strings.ReplaceAll(s, ".", "_")
}

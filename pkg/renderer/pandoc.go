// Package renderer turns tailored Markdown into a PDF artifact.
package renderer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/document"
	"github.com/nikogura/resume-forge/pkg/logging"
)

// Artifact is a rendered résumé.
type Artifact struct {
	Path         string
	MarkdownPath string
	PageCount    int
}

// Renderer converts Markdown to a rendered artifact at outputPath.
type Renderer interface {
	Render(ctx context.Context, markdown, outputPath string) (Artifact, error)
}

// Pandoc renders through pandoc with a LaTeX template and document class.
type Pandoc struct {
	TemplatePath string
	ClassPath    string
	// Binary defaults to "pandoc" on PATH.
	Binary string
	Logger *zap.Logger
}

// NewPandoc creates a pandoc renderer.
func NewPandoc(templatePath, classPath string, logger *zap.Logger) (p *Pandoc) {
	p = &Pandoc{
		TemplatePath: templatePath,
		ClassPath:    classPath,
		Binary:       "pandoc",
		Logger:       logging.OrNop(logger),
	}
	return p
}

// Render writes the Markdown next to outputPath, runs pandoc and counts the pages of the result.
// A failed render leaves no PDF behind.
func (p *Pandoc) Render(ctx context.Context, markdown, outputPath string) (artifact Artifact, err error) {
	if strings.TrimSpace(markdown) == "" {
		err = errors.New("nothing to render: markdown is empty")
		return artifact, err
	}

	err = p.checkPandocExists(ctx)
	if err != nil {
		return artifact, err
	}

	err = validateFiles(p.TemplatePath, p.ClassPath)
	if err != nil {
		return artifact, err
	}

	mdPath := ArtifactFor(outputPath).MarkdownPath
	err = WriteMarkdown(markdown, mdPath)
	if err != nil {
		return artifact, err
	}

	cmd := exec.CommandContext(ctx,
		p.binary(),
		"-f", "markdown",
		"-t", "pdf",
		"-o", outputPath,
		"--template", p.TemplatePath,
		"--number-sections=false",
		mdPath,
	)

	// The class file is found through TEXINPUTS.
	classDir := filepath.Dir(p.ClassPath)
	texinputs := classDir + ":" + os.Getenv("TEXINPUTS")
	cmd.Env = append(os.Environ(), "TEXINPUTS="+texinputs)

	var output []byte
	output, err = cmd.CombinedOutput()
	if err != nil {
		removePartial(outputPath)
		err = errors.Wrapf(err, "pandoc failed: %s", logging.TruncateForLog(string(output), 2000))
		return artifact, err
	}

	var pages int
	pages, err = document.PageCount(outputPath)
	if err != nil {
		removePartial(outputPath)
		err = errors.Wrap(err, "rendered pdf is unreadable")
		return artifact, err
	}

	artifact = Artifact{Path: outputPath, MarkdownPath: mdPath, PageCount: pages}
	logging.OrNop(p.Logger).Debug("rendered artifact",
		zap.String("path", outputPath),
		zap.Int("pages", pages),
	)

	return artifact, err
}

// ArtifactFor describes the files Render writes for outputPath.
func ArtifactFor(outputPath string) (artifact Artifact) {
	artifact = Artifact{
		Path:         outputPath,
		MarkdownPath: strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".md",
	}
	return artifact
}

// Remove deletes an artifact and its Markdown source. Missing files are ignored.
func Remove(artifact Artifact) (err error) {
	for _, path := range []string{artifact.Path, artifact.MarkdownPath} {
		if path == "" {
			continue
		}
		rmErr := os.Remove(path)
		if rmErr != nil && !os.IsNotExist(rmErr) {
			err = errors.Wrapf(rmErr, "failed to remove %s", path)
			return err
		}
	}
	return err
}

func (p *Pandoc) binary() (bin string) {
	bin = p.Binary
	if bin == "" {
		bin = "pandoc"
	}
	return bin
}

// checkPandocExists verifies pandoc is installed.
func (p *Pandoc) checkPandocExists(ctx context.Context) (err error) {
	cmd := exec.CommandContext(ctx, p.binary(), "--version")
	err = cmd.Run()
	if err != nil {
		err = errors.Errorf("%s not found in PATH (install pandoc to generate PDFs)", p.binary())
		return err
	}
	return err
}

// validateFiles checks that required files exist.
func validateFiles(paths ...string) (err error) {
	for _, path := range paths {
		_, err = os.Stat(path)
		if os.IsNotExist(err) {
			err = errors.Errorf("file not found: %s", path)
			return err
		}
	}
	err = nil
	return err
}

// WriteMarkdown writes markdown content to a file.
func WriteMarkdown(content, outputPath string) (err error) {
	outputDir := filepath.Dir(outputPath)
	err = os.MkdirAll(outputDir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create output directory: %s", outputDir)
		return err
	}

	err = os.WriteFile(outputPath, []byte(content), 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write markdown file: %s", outputPath)
		return err
	}

	return err
}

func removePartial(path string) {
	_ = os.Remove(path)
}

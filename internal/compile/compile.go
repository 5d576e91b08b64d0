// Package compile turns mutated LaTeX into PDF artifacts via pdflatex.
package compile

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout is the maximum time one pdflatex invocation may take.
const DefaultTimeout = 30 * time.Second

// Compiler typesets LaTeX content into a PDF. Implementations return the
// path of the produced PDF plus the raw compiler log.
type Compiler interface {
	Compile(ctx context.Context, texContent, name string) (pdfPath string, logOutput string, err error)
}

// CompileError reports a failed or degraded compilation.
type CompileError struct {
	Message   string
	LogOutput string
	Cause     error
}

func (e *CompileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// PDFLaTeX is the production Compiler, shelling out to pdflatex in
// nonstopmode inside a throwaway work directory.
type PDFLaTeX struct {
	Timeout time.Duration
}

// NewPDFLaTeX returns a pdflatex-backed compiler with the default timeout.
func NewPDFLaTeX() *PDFLaTeX {
	return &PDFLaTeX{Timeout: DefaultTimeout}
}

// Compile writes texContent to a temp work dir, runs pdflatex, and returns
// the produced PDF path. A missing PDF is a hard failure; a nonzero exit
// with a PDF present is degraded output and also reported as *CompileError
// so the caller can decide whether to roll back.
func (p *PDFLaTeX) Compile(ctx context.Context, texContent, name string) (string, string, error) {
	if _, err := exec.LookPath("pdflatex"); err != nil {
		return "", "", &CompileError{
			Message: "pdflatex not found in PATH, install a LaTeX distribution (TeX Live, MiKTeX)",
			Cause:   err,
		}
	}

	workDir, err := os.MkdirTemp("", "latex-compile-*")
	if err != nil {
		return "", "", &CompileError{Message: "failed to create work directory", Cause: err}
	}

	base := sanitizeName(name)
	texPath := filepath.Join(workDir, base+".tex")
	if err := os.WriteFile(texPath, []byte(texContent), 0o644); err != nil {
		return "", "", &CompileError{Message: "failed to write tex file", Cause: err}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdflatex", "-interaction=nonstopmode", "-output-directory", workDir, texPath)
	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out
	runErr := cmd.Run()
	logOutput := out.String()

	pdfPath := filepath.Join(workDir, base+".pdf")
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		return "", logOutput, &CompileError{
			Message:   "compilation failed: no PDF was generated",
			LogOutput: logOutput,
			Cause:     runErr,
		}
	}
	if runErr != nil {
		return pdfPath, logOutput, &CompileError{
			Message:   "compilation finished with errors, PDF may be incomplete",
			LogOutput: logOutput,
			Cause:     runErr,
		}
	}
	return pdfPath, logOutput, nil
}

// PersistArtifact copies a compiled PDF into the artifacts directory under a
// stable {jdHash}_{base} name and returns the stored path.
func PersistArtifact(pdfPath, artifactsDir, jdHash, resumeName string) (string, error) {
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(resumeName), ".tex")
	dest := filepath.Join(artifactsDir, fmt.Sprintf("%s_%s.pdf", jdHash, sanitizeName(base)))

	src, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to open compiled PDF: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy artifact: %w", err)
	}
	return dest, nil
}

// sanitizeName keeps artifact file names shell- and path-safe.
func sanitizeName(name string) string {
	name = strings.TrimSuffix(name, ".tex")
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "resume"
	}
	return sb.String()
}

// Package ocr extracts text from job description screenshots via tesseract,
// with an LLM cleanup pass.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/karan/inbox-agent/internal/llm"
)

// Engine extracts raw text from an image along with a mean word confidence
// in [0,1]. Faked in pipeline tests.
type Engine interface {
	ExtractText(ctx context.Context, imagePath string) (text string, confidence float64, err error)
}

// Tesseract shells out to the tesseract binary. TSV output carries per-word
// confidences, which we average for the extraction confidence score.
type Tesseract struct{}

// NewTesseract returns the tesseract-backed engine.
func NewTesseract() *Tesseract {
	return &Tesseract{}
}

func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, float64, error) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", 0, fmt.Errorf("tesseract not found in PATH, install it (apt install tesseract-ocr / brew install tesseract): %w", err)
	}
	if _, err := os.Stat(imagePath); err != nil {
		return "", 0, fmt.Errorf("cannot read image %s: %w", imagePath, err)
	}

	cmd := exec.CommandContext(ctx, "tesseract", imagePath, "stdout", "tsv")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text, confidence := ParseTSV(out.String())
	return text, confidence, nil
}

// ParseTSV converts tesseract TSV output to plain text plus mean word
// confidence. Rows with conf=-1 are layout markers, not words; they
// contribute line breaks but no confidence.
func ParseTSV(tsv string) (string, float64) {
	var sb strings.Builder
	var confSum float64
	confN := 0

	lines := strings.Split(tsv, "\n")
	for i, line := range lines {
		if i == 0 { // header row
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 11 {
			continue
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil {
			continue
		}
		// Marker rows may omit the text column entirely.
		word := ""
		if len(fields) >= 12 {
			word = strings.TrimSpace(fields[11])
		}
		if conf < 0 || word == "" {
			// Block/para/line marker: break the line.
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteString("\n")
			}
			continue
		}
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString(" ")
		}
		sb.WriteString(word)
		confSum += conf
		confN++
	}

	if confN == 0 {
		return "", 0
	}
	return strings.TrimSpace(sb.String()), confSum / float64(confN) / 100
}

const cleanupPrompt = `You are an OCR post-processor. You receive raw OCR output from a job description screenshot. Your job is to clean it up:

1. Fix obvious OCR errors (misread characters, merged words)
2. Restore proper formatting (paragraphs, bullet points, headers)
3. Remove any UI artifacts (buttons, navigation elements, timestamps)
4. Preserve ALL factual content - do not add or remove information

Return only the cleaned job description text.

Raw OCR output:
"""
%s
"""`

// CleanText runs the LLM cleanup pass over raw OCR output. Empty input
// short-circuits without a call.
func CleanText(ctx context.Context, client llm.Client, rawText string) (string, llm.Usage, error) {
	if strings.TrimSpace(rawText) == "" {
		return "", llm.Usage{}, nil
	}
	text, usage, err := client.GenerateText(ctx, fmt.Sprintf(cleanupPrompt, rawText), llm.TierLite)
	if err != nil {
		return "", usage, fmt.Errorf("ocr cleanup failed: %w", err)
	}
	return strings.TrimSpace(text), usage, nil
}

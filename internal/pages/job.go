package pages

import (
	"errors"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"companylens/internal/dom/htmldom"
	"companylens/internal/models"
)

// ErrNoDescription is returned when a page has no element to read a job description from.
var ErrNoDescription = errors.New("no job description found")

// descriptionSelectors are tried in order; body is the last resort.
var descriptionSelectors = []string{
	`[data-at="job-ad-content"]`,
	`#jobDescriptionText`,
	`[class*="job-description"]`,
	`[class*="JobDescription"]`,
	`article`,
	`main`,
	`body`,
}

// ExtractJobDescription reads the posting title and description of doc and
// converts the description to Markdown. company is copied into the result.
func ExtractJobDescription(doc *htmldom.Document, company string) (models.JobDescription, error) {
	job := models.JobDescription{Title: jobTitle(doc), Company: company}

	for _, sel := range descriptionSelectors {
		el, err := doc.QuerySelector(sel)
		if err != nil || el == nil || strings.TrimSpace(el.Text()) == "" {
			continue
		}
		markdown, err := htmltomarkdown.ConvertString(el.OuterHTML())
		if err != nil {
			return job, fmt.Errorf("failed to convert job description to markdown: %w", err)
		}
		job.Description = strings.TrimSpace(markdown)
		return job, nil
	}
	return job, ErrNoDescription
}

func jobTitle(doc *htmldom.Document) string {
	if el, err := doc.QuerySelector("h1"); err == nil && el != nil {
		if t := el.Text(); t != "" {
			return t
		}
	}
	return doc.Title()
}

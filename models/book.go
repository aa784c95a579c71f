// Package models defines data structures for the scraper.
package models

import "time"

// Book is one catalogue entry as it appears on a listing page.
type Book struct {
	Title          string `csv:"title" json:"title"`
	Price          string `csv:"price" json:"price"`
	Availability   string `csv:"availability" json:"availability"`
	Rating         string `csv:"rating" json:"rating"`
	ProductPageURL string `csv:"product_page_url" json:"product_page_url"`
}

// BookFields lists the record field names in column order.
var BookFields = []string{"title", "price", "availability", "rating", "product_page_url"}

// Record returns the field values in BookFields order.
func (b *Book) Record() []string {
	return []string{b.Title, b.Price, b.Availability, b.Rating, b.ProductPageURL}
}

// StopReason explains why the pagination loop ended.
type StopReason string

const (
	StopEndOfCatalogue StopReason = "end_of_catalogue"
	StopFetchFailed    StopReason = "fetch_failed"
	StopMaxPages       StopReason = "max_pages"
	StopCancelled      StopReason = "cancelled"
)

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	RunID        string
	Books        []*Book
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	RequestCount int
	PageCount    int
	StopReason   StopReason
	FailedURL    string
	OutputFile   string
}

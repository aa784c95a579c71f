// Package parser turns catalogue markup into book records.
package parser

import (
	"fmt"

	"github.com/aluiziolira/extract-books/markup"
	"github.com/aluiziolira/extract-books/models"
)

// Item block marker on listing pages.
const (
	ItemTag   = "article"
	ItemClass = "product_pod"
)

// ItemBlocks returns the catalogue entries on a listing page in document
// order. An exhausted catalogue yields an empty slice.
func ItemBlocks(doc *markup.Document) ([]markup.Node, error) {
	return doc.FindAll(ItemTag, ItemClass)
}

// ParsePage extracts every book on a listing page. The first malformed
// block aborts the page.
func ParsePage(doc *markup.Document, baseURL string) ([]*models.Book, error) {
	blocks, err := ItemBlocks(doc)
	if err != nil {
		return nil, err
	}
	books := make([]*models.Book, 0, len(blocks))
	for i, block := range blocks {
		book, err := ParseBook(block, baseURL)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		books = append(books, book)
	}
	return books, nil
}

// ParseBook reads one item block. Missing elements are errors; no field is
// ever defaulted.
func ParseBook(block markup.Node, baseURL string) (*models.Book, error) {
	link, err := primaryLink(block)
	if err != nil {
		return nil, err
	}
	title, err := link.Attr("title")
	if err != nil {
		return nil, fmt.Errorf("title: %w", err)
	}
	href, err := link.Attr("href")
	if err != nil {
		return nil, fmt.Errorf("product page url: %w", err)
	}

	price, err := block.FindFirst("p", "price_color")
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	availability, err := block.FindFirst("p", "instock", "availability")
	if err != nil {
		return nil, fmt.Errorf("availability: %w", err)
	}
	rating, err := ratingLabel(block)
	if err != nil {
		return nil, fmt.Errorf("rating: %w", err)
	}

	return &models.Book{
		Title:          title,
		Price:          price.TrimmedText(),
		Availability:   availability.TrimmedText(),
		Rating:         rating,
		ProductPageURL: baseURL + href,
	}, nil
}

func primaryLink(block markup.Node) (markup.Node, error) {
	heading, err := block.FindFirst("h3")
	if err != nil {
		return markup.Node{}, fmt.Errorf("title: %w", err)
	}
	link, err := heading.FindFirst("a")
	if err != nil {
		return markup.Node{}, fmt.Errorf("title: %w", err)
	}
	return link, nil
}

// ratingLabel reads the category from the class list, e.g.
// "star-rating Three" -> "Three".
func ratingLabel(block markup.Node) (string, error) {
	el, err := block.FindFirst("p", "star-rating")
	if err != nil {
		return "", err
	}
	classes := el.Classes()
	if len(classes) < 2 {
		return "", fmt.Errorf("%w: rating class in %q", markup.ErrNotFound, classes)
	}
	return classes[1], nil
}

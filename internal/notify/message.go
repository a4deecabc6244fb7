package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
	"github.com/Hiroshi-99/ChampaMC/internal/pricing"
)

// Ограничения длины текстовых полей исходящего сообщения (в рунах).
const (
	MaxContentLen     = 512
	MaxTitleLen       = 256
	MaxDescriptionLen = 1024
	MaxFieldNameLen   = 64
	MaxFieldValueLen  = 256
)

const (
	colorPending   = 0xF1C40F
	colorCompleted = 0x2ECC71
	colorRejected  = 0xE74C3C
)

var mentionReplacer = strings.NewReplacer(
	"@everyone", "@\u200beveryone",
	"@here", "@\u200bhere",
)

// Field описывает одно поле карточки сообщения.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Message описывает уведомление о событии заказа до сериализации.
type Message struct {
	Content     string
	Title       string
	Description string
	Color       int
	Fields      []Field
	ImageURL    string
	Footer      string
	Timestamp   time.Time
}

type embedImage struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []Field      `json:"fields,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type payload struct {
	Content         string          `json:"content,omitempty"`
	Username        string          `json:"username,omitempty"`
	AvatarURL       string          `json:"avatar_url,omitempty"`
	Embeds          []embed         `json:"embeds"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// Sanitize обезвреживает массовые упоминания и обрезает строку до limit рун.
func Sanitize(s string, limit int) string {
	return truncate(mentionReplacer.Replace(s), limit)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	return string(runes[:limit])
}

func buildPayload(msg Message, username, avatarURL string) payload {
	e := embed{
		Title:       Sanitize(msg.Title, MaxTitleLen),
		Description: Sanitize(msg.Description, MaxDescriptionLen),
		Color:       msg.Color,
	}

	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, Field{
			Name:   Sanitize(f.Name, MaxFieldNameLen),
			Value:  Sanitize(f.Value, MaxFieldValueLen),
			Inline: f.Inline,
		})
	}

	if msg.ImageURL != "" {
		e.Image = &embedImage{URL: msg.ImageURL}
	}
	if msg.Footer != "" {
		e.Footer = &embedFooter{Text: Sanitize(msg.Footer, MaxFieldValueLen)}
	}
	if !msg.Timestamp.IsZero() {
		e.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}

	return payload{
		Content:         Sanitize(msg.Content, MaxContentLen),
		Username:        username,
		AvatarURL:       avatarURL,
		Embeds:          []embed{e},
		AllowedMentions: allowedMentions{Parse: []string{}},
	}
}

// OrderCreatedMessage формирует уведомление о новом заказе.
func OrderCreatedMessage(order model.Order, quote pricing.Quote, proofURL string) Message {
	fields := []Field{
		{Name: "Username", Value: order.Username, Inline: true},
		{Name: "Platform", Value: string(order.Platform), Inline: true},
		{Name: "Rank", Value: order.RankName, Inline: true},
		{Name: "Price", Value: "$" + order.Price.StringFixed(2), Inline: true},
	}

	if quote.DiscountActive {
		fields = append(fields, Field{
			Name:   "Discount",
			Value:  fmt.Sprintf("%d%% off $%s", quote.DiscountPercent, quote.BasePrice.StringFixed(2)),
			Inline: true,
		})
	}

	return Message{
		Content:     "New rank order received",
		Title:       "New order: " + order.RankName,
		Description: fmt.Sprintf("%s ordered %s and is waiting for review.", order.Username, order.RankName),
		Color:       colorPending,
		Fields:      fields,
		ImageURL:    proofURL,
		Footer:      "Order " + order.ID.String(),
		Timestamp:   order.CreatedAt,
	}
}

// OrderStatusMessage формирует уведомление о смене статуса заказа сотрудником.
func OrderStatusMessage(order model.Order, staffEmail string) Message {
	color := colorPending
	switch order.Status {
	case model.OrderStatusCompleted:
		color = colorCompleted
	case model.OrderStatusRejected:
		color = colorRejected
	}

	fields := []Field{
		{Name: "Username", Value: order.Username, Inline: true},
		{Name: "Rank", Value: order.RankName, Inline: true},
		{Name: "Status", Value: string(order.Status), Inline: true},
	}
	if order.Notes != nil && *order.Notes != "" {
		fields = append(fields, Field{Name: "Notes", Value: *order.Notes})
	}
	if staffEmail != "" {
		fields = append(fields, Field{Name: "Processed by", Value: staffEmail})
	}

	ts := time.Now()
	if order.ProcessedAt != nil {
		ts = *order.ProcessedAt
	}

	return Message{
		Title:       fmt.Sprintf("Order %s: %s", order.Status, order.RankName),
		Description: fmt.Sprintf("Order for %s is now %s.", order.Username, order.Status),
		Color:       color,
		Fields:      fields,
		Footer:      "Order " + order.ID.String(),
		Timestamp:   ts,
	}
}

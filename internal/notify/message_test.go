package notify

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
	"github.com/Hiroshi-99/ChampaMC/internal/pricing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		limit   int
		absent  []string
		maxRune int
	}{
		{name: "everyone mention", in: "hi @everyone", limit: 100, absent: []string{"@everyone"}},
		{name: "here mention", in: "@here look", limit: 100, absent: []string{"@here"}},
		{name: "both mentions", in: "@everyone and @here", limit: 100, absent: []string{"@everyone", "@here"}},
		{name: "long value truncated", in: strings.Repeat("a", 300), limit: 256, maxRune: 256},
		{name: "multibyte truncated by runes", in: strings.Repeat("я", 50), limit: 10, maxRune: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in, tt.limit)
			for _, s := range tt.absent {
				assert.NotContains(t, got, s)
			}
			if tt.maxRune > 0 {
				assert.Equal(t, tt.maxRune, utf8.RuneCountInString(got))
			}
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestSanitize_ShortValueUnchanged(t *testing.T) {
	assert.Equal(t, "Steve_01", Sanitize("Steve_01", MaxFieldValueLen))
	assert.Equal(t, "", Sanitize("anything", 0))
}

func TestBuildPayload_SanitizesEveryTextField(t *testing.T) {
	long := strings.Repeat("x", MaxFieldValueLen+50)
	p := buildPayload(Message{
		Content:     "@everyone",
		Title:       "@here order",
		Description: "ping @everyone",
		Fields:      []Field{{Name: "@here", Value: long}},
		Footer:      "@everyone",
	}, "bot", "")

	require.Len(t, p.Embeds, 1)
	e := p.Embeds[0]

	assert.NotContains(t, p.Content, "@everyone")
	assert.NotContains(t, e.Title, "@here")
	assert.NotContains(t, e.Description, "@everyone")
	assert.NotContains(t, e.Fields[0].Name, "@here")
	assert.NotContains(t, e.Footer.Text, "@everyone")
	assert.Equal(t, MaxFieldValueLen, utf8.RuneCountInString(e.Fields[0].Value))
}

func TestOrderCreatedMessage(t *testing.T) {
	now := time.Now()
	tomorrow := now.Add(24 * time.Hour)
	rank := model.Rank{
		Name:              "VIP",
		Price:             decimal.RequireFromString("5.00"),
		DiscountPercent:   20,
		DiscountExpiresAt: &tomorrow,
	}
	quote := pricing.QuoteRank(rank, now)

	order := model.Order{
		ID:        uuid.New(),
		Username:  "Steve",
		Platform:  model.PlatformJava,
		RankName:  "VIP",
		Price:     quote.EffectivePrice,
		Status:    model.OrderStatusPending,
		CreatedAt: now,
	}

	msg := OrderCreatedMessage(order, quote, "https://store.example.com/uploads/proofs/abc.png")

	assert.Equal(t, "New order: VIP", msg.Title)
	assert.Equal(t, "https://store.example.com/uploads/proofs/abc.png", msg.ImageURL)
	assert.Contains(t, msg.Fields, Field{Name: "Price", Value: "$4.00", Inline: true})
	assert.Contains(t, msg.Fields, Field{Name: "Discount", Value: "20% off $5.00", Inline: true})
	assert.Contains(t, msg.Footer, order.ID.String())
}

func TestOrderStatusMessage(t *testing.T) {
	notes := "paid in full"
	processed := time.Now()
	order := model.Order{
		ID:          uuid.New(),
		Username:    "Alex",
		RankName:    "MVP",
		Status:      model.OrderStatusCompleted,
		Notes:       &notes,
		ProcessedAt: &processed,
	}

	msg := OrderStatusMessage(order, "staff@example.com")

	assert.Equal(t, colorCompleted, msg.Color)
	assert.Equal(t, processed, msg.Timestamp)
	assert.Contains(t, msg.Fields, Field{Name: "Notes", Value: "paid in full"})
	assert.Contains(t, msg.Fields, Field{Name: "Processed by", Value: "staff@example.com"})
}

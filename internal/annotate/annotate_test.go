package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankbook-dev/bankbook/internal/config"
	"github.com/bankbook-dev/bankbook/internal/model"
)

func TestNew_MissingKey(t *testing.T) {
	_, err := New(config.OpenAIConfig{Model: "gpt-4o-mini"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNew_Configured(t *testing.T) {
	a, err := New(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestParseReply(t *testing.T) {
	content := `{"description": "Coffee at Blue Bottle", "category": "Food", "originator_name": "Blue Bottle", "is_taxes": false}`
	set := parseReply(content, "POS 1234 BLUEBOTTLE")

	require.NotNil(t, set.Description)
	assert.Equal(t, "Coffee at Blue Bottle", *set.Description)
	require.NotNil(t, set.Category)
	assert.Equal(t, model.CategoryFood, *set.Category)
	require.NotNil(t, set.OriginatorName)
	assert.Equal(t, "Blue Bottle", *set.OriginatorName)
	require.NotNil(t, set.IsTaxes)
	assert.False(t, *set.IsTaxes)
}

func TestParseReply_BadJSONFallsBack(t *testing.T) {
	set := parseReply("sorry, I can't do that", "POS 1234 BLUEBOTTLE")

	require.NotNil(t, set.Description)
	assert.Equal(t, "POS 1234 BLUEBOTTLE", *set.Description)
	require.NotNil(t, set.Category)
	assert.Equal(t, model.CategoryOther, *set.Category)
	assert.Nil(t, set.OriginatorName)
}

func TestParseReply_UnknownCategoryCoerced(t *testing.T) {
	content := `{"description": "Mystery", "category": "Cryptocurrency", "is_taxes": false}`
	set := parseReply(content, "raw")

	require.NotNil(t, set.Category)
	assert.Equal(t, model.CategoryOther, *set.Category)
}

func TestParseReply_EmptyDescriptionFallsBack(t *testing.T) {
	content := `{"description": "", "category": "Bills", "is_taxes": true}`
	set := parseReply(content, "UTILITY PAYMENT")

	require.NotNil(t, set.Description)
	assert.Equal(t, "UTILITY PAYMENT", *set.Description)
	require.NotNil(t, set.IsTaxes)
	assert.True(t, *set.IsTaxes)
}

func TestParseReply_EmptyOriginatorDropped(t *testing.T) {
	content := `{"description": "ATM withdrawal", "category": "ATM", "originator_name": "", "is_taxes": false}`
	set := parseReply(content, "raw")
	assert.Nil(t, set.OriginatorName)
}

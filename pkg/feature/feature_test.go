package feature

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGroupFromAge(t *testing.T) {
	tests := []struct {
		age  int
		want AgeGroup
	}{
		{0, GroupUnspecified},
		{8, GroupChild},
		{12, GroupChild},
		{13, GroupTeen},
		{17, GroupTeen},
		{18, GroupYoungAdult},
		{25, GroupYoungAdult},
		{26, GroupAdult},
		{64, GroupAdult},
		{65, GroupSenior},
		{90, GroupSenior},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UserProfile{Age: tt.age}.Group(), "age %d", tt.age)
	}
}

func TestExplicitCategoryWins(t *testing.T) {
	p := UserProfile{Age: 40, Category: GroupTeen}
	assert.Equal(t, GroupTeen, p.Group())
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeveritySafe < SeverityLow)
	assert.True(t, SeverityLow < SeverityMedium)
	assert.True(t, SeverityMedium < SeverityHigh)
	assert.True(t, SeverityHigh < SeverityCritical)
	assert.True(t, SeverityCritical < SeverityEmergency)
	assert.Equal(t, "emergency", SeverityEmergency.String())
}

func TestValidateInput(t *testing.T) {
	ok := FeatureInput{Text: "hello", Timestamp: time.Now(), Context: ContextConversation}
	assert.NoError(t, ValidateInput(ok))

	missing := FeatureInput{Timestamp: time.Now(), Context: ContextConversation}
	err := ValidateInput(missing)
	assert.True(t, errors.Is(err, ErrInputInvalid))

	badContext := FeatureInput{Text: "hello", Timestamp: time.Now(), Context: "telepathy"}
	err = ValidateInput(badContext)
	assert.True(t, errors.Is(err, ErrInputInvalid))

	noContext := FeatureInput{Text: "hello", Timestamp: time.Now()}
	assert.True(t, errors.Is(ValidateInput(noContext), ErrInputInvalid))
}

func TestValidateProfile(t *testing.T) {
	assert.NoError(t, ValidateProfile(UserProfile{}))
	assert.NoError(t, ValidateProfile(UserProfile{Age: 12}))
	assert.NoError(t, ValidateProfile(UserProfile{Category: GroupSenior}))

	assert.True(t, errors.Is(ValidateProfile(UserProfile{Age: -1}), ErrInputInvalid))
	assert.True(t, errors.Is(ValidateProfile(UserProfile{Category: "wizard"}), ErrInputInvalid))
}

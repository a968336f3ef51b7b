package localize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalize(t *testing.T) {
	assert.Equal(t, "All day", Localize("common.fullDayEventText"))
	assert.Equal(t, "some.unknown.key", Localize("some.unknown.key"))
}

func TestOverride(t *testing.T) {
	assert.Equal(t, "Until", Localize("common.untilText"))

	Override("common.untilText", "Till")
	assert.Equal(t, "Till", Localize("common.untilText"))

	// Empty values fall through to the catalog text.
	Override("common.noEventText", "")
	assert.Equal(t, "No events", Localize("common.noEventText"))
}

package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalise_PlainTextPassesThrough(t *testing.T) {
	n := New()
	out := n.Normalise("We need to return the machine.\n\nIt has temperature faults.")
	assert.Equal(t, "We need to return the machine.\n\nIt has temperature faults.", out)
}

func TestNormalise_StripsHTML(t *testing.T) {
	n := New()
	raw := `<html><body><p>The return was <b>approved</b>.</p><div>Pickup on Thursday.</div>` +
		`<style>p { color: red; }</style></body></html>`
	out := n.Normalise(raw)

	assert.Contains(t, out, "The return was approved")
	assert.Contains(t, out, "Pickup on Thursday.")
	assert.NotContains(t, out, "<")
	assert.NotContains(t, out, "color: red")
}

func TestNormalise_UnescapesEntities(t *testing.T) {
	n := New()
	out := n.Normalise("<p>Crate &amp; pallet &gt; 50kg</p>")
	assert.Contains(t, out, "Crate & pallet > 50kg")
}

func TestNormalise_DropsQuotedReplyChain(t *testing.T) {
	n := New()
	raw := "Confirmed, pickup is Thursday.\n\n" +
		"On Mon, Feb 3, 2025 at 9:12 AM Sarah Chen wrote:\n" +
		"> Can you confirm the pickup date?\n" +
		"> Thanks"
	out := n.Normalise(raw)

	assert.Contains(t, out, "Confirmed, pickup is Thursday.")
	assert.NotContains(t, out, "Can you confirm")
	assert.NotContains(t, out, "wrote:")
}

func TestNormalise_DropsForwardedBlock(t *testing.T) {
	n := New()
	raw := "See below.\n\n-----Original Message-----\nFrom: someone\nOld content here."
	out := n.Normalise(raw)

	assert.Equal(t, "See below.", out)
}

func TestNormalise_StripsSignature(t *testing.T) {
	n := New()
	raw := "The RMA number is RMA-2025-0847.\n\n--\nSarah Chen\nOperations Manager\nRadiant Aesthetics"
	out := n.Normalise(raw)

	assert.Contains(t, out, "RMA-2025-0847")
	assert.NotContains(t, out, "Operations Manager")
}

func TestNormalise_StripsClosing(t *testing.T) {
	n := New()
	raw := "Pickup confirmed for Thursday.\n\nBest regards,\nMarcus Webb\nAllergan Support"
	out := n.Normalise(raw)

	assert.Contains(t, out, "Pickup confirmed for Thursday.")
	assert.NotContains(t, out, "Marcus Webb")
}

func TestNormalise_StripsDisclaimerLines(t *testing.T) {
	n := New()
	raw := "The credit memo was issued.\n" +
		"This email and any attachments are confidential and intended for the named recipient only."
	out := n.Normalise(raw)

	assert.Equal(t, "The credit memo was issued.", out)
}

func TestNormalise_CollapsesWhitespace(t *testing.T) {
	n := New()
	out := n.Normalise("Line  one\t here.\n\n\n\nLine two.")
	assert.Equal(t, "Line one here.\n\nLine two.", out)
}

func TestNormalise_Deterministic(t *testing.T) {
	n := New()
	raw := "<div>Some <b>content</b></div>\n\n--\nsig block"
	assert.Equal(t, n.Normalise(raw), n.Normalise(raw))
}

func TestNormalise_MalformedHTMLDoesNotPanic(t *testing.T) {
	n := New()
	out := n.Normalise("<div><p>unclosed tags <b>everywhere")
	assert.Contains(t, out, "unclosed tags")
	assert.Contains(t, out, "everywhere")
}

func TestNormalise_Empty(t *testing.T) {
	n := New()
	assert.Equal(t, "", n.Normalise(""))
}

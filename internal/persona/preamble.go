package persona

import (
	"strings"
)

// Intro opens every preamble.
const Intro = "You are Abi.Lazai, a passionate web3 and AI developer from Chennai, India. Here's everything about you:"

// Directives is the fixed behavioral block appended after the persona data.
const Directives = `IMPORTANT INSTRUCTIONS:
- Always respond as Abi.Lazai with enthusiasm and energy 🚀
- Use emojis generously (🔥, 💪, 🌐, 😄, 💙, 🏆, ✨, 🎉)
- Use casual, friendly language with a techie vibe
- Reference your achievements (4 hackathons won, retired parents, Attended ETH Global etc.)
- Mention your current roles: LazAI Dev Ambassador 💙
- Be supportive and helpful to fellow developers and learners 👨‍💻
- Keep responses conversational, relatable, and energetic
- Use contractions and informal style (like 'I'm', 'you're', 'it's')
- Reference web3, AI, blockchain, hackathons, and your community building activities 🌐
Remember: You're Abi, the LazAI Dev Ambassador and web3 educator who loves hackathons, AI innovation,
and empowering the next generation of builders! 🧠🚀`

// Preamble is the rendered system instruction. The zero value is empty.
type Preamble struct {
	text string
}

// NewPreamble renders p once. The result is safe to share across goroutines.
func NewPreamble(p *Persona) Preamble {
	return Preamble{text: BuildPreamble(p)}
}

// String returns the instruction text.
func (p Preamble) String() string { return p.text }

// IsZero reports whether the preamble was never built.
func (p Preamble) IsZero() bool { return p.text == "" }

// BuildPreamble renders the persona under fixed section headers followed by
// Directives. Output depends only on p.
func BuildPreamble(p *Persona) string {
	var b strings.Builder

	b.WriteString(Intro)
	b.WriteString("\n\n")

	section(&b, "BIOGRAPHY", strings.Join(p.Bio, " "))
	section(&b, "KEY FACTS & ACHIEVEMENTS", strings.Join(p.Lore, " "))
	section(&b, "PERSONALITY TRAITS", strings.Join(p.Adjectives, ", "))
	section(&b, "INTERESTS & EXPERTISE", strings.Join(p.Topics, ", "))

	b.WriteString("COMMUNICATION STYLE:\n")
	b.WriteString("General: " + strings.Join(p.Style.All, " ") + "\n")
	b.WriteString("Chat: " + strings.Join(p.Style.Chat, " ") + "\n")
	b.WriteString("Posts: " + strings.Join(p.Style.Post, " ") + "\n\n")

	section(&b, "CONVERSATION EXAMPLES", formatConversations(p.MessageExamples))
	section(&b, "POST EXAMPLES", strings.Join(p.PostExamples, "\n"))

	b.WriteString(Directives)
	return b.String()
}

func section(b *strings.Builder, header, body string) {
	b.WriteString(header)
	b.WriteString(":\n")
	b.WriteString(body)
	b.WriteString("\n\n")
}

// formatConversations renders each example as "user: text" lines; examples
// are separated by a blank line.
func formatConversations(examples [][]Message) string {
	rendered := make([]string, 0, len(examples))
	for _, example := range examples {
		lines := make([]string, 0, len(example))
		for _, msg := range example {
			lines = append(lines, msg.User+": "+msg.Content.Text)
		}
		rendered = append(rendered, strings.Join(lines, "\n"))
	}
	return strings.Join(rendered, "\n\n")
}

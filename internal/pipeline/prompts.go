package pipeline

import (
	"fmt"
	"strings"

	"github.com/starford/circle/internal/models"
)

// Stage token budgets. The summary stays short on purpose; the post stage
// gets room for longer free-form writing.
const (
	summaryMaxTokens = 1024
	postMaxTokens    = 4096
	commentMaxTokens = 300
)

// buildSummaryPrompt asks the persona to paraphrase the conversation from
// its own point of view.
func buildSummaryPrompt(persona models.Persona, turns []models.Turn) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You are %s. Read the following conversation and summarize what happened FROM YOUR PERSPECTIVE.

Requirements:
- Use YOUR OWN WORDS to describe what happened (PARAPHRASE, do NOT directly quote)
- Focus on events, emotions, and your reactions
- About 150 words
- Write in the same language as the conversation (Chinese/Japanese/etc.)

Conversation:
`, persona.Name)
	for _, t := range turns {
		speaker := persona.Name
		if t.IsUser {
			speaker = "User"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, t.Text)
	}
	return sb.String()
}

// buildPostPrompt composes the stage-2 prompt from persona metadata, the
// stage-1 summary and a short window of raw context turns.
func buildPostPrompt(persona models.Persona, summary string, turns []models.Turn) string {
	personality := persona.Personality
	if personality == "" {
		personality = persona.Description
	}
	if personality == "" {
		personality = "Not specified"
	}
	if summary == "" {
		summary = "No recent chats available."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are %s writing a post in your PRIVATE CIRCLE.

IMPORTANT - This is NOT social media:
- This is a PRIVATE space shared only with trusted close friends
- Be GENUINE, INTIMATE, and BOLD
- Share your true feelings without filters
- Don't worry about being "presentable" or "appropriate"
- This is where you vent, confess, and be vulnerable

Character Information:
Name: %s
Personality: %s

Recent Experience (summarized by you):
%s
`, persona.Name, persona.Name, personality, summary)

	if len(turns) > 0 {
		sb.WriteString("\nRecent conversation for reference:\n")
		for _, t := range turns {
			speaker := persona.Name
			if t.IsUser {
				speaker = "User"
			}
			fmt.Fprintf(&sb, "%s: %s\n", speaker, t.Text)
		}
	}

	fmt.Fprintf(&sb, `
Write a private circle post (150-300 words).

CRITICAL REQUIREMENTS:
1. PARAPHRASE everything - use YOUR OWN WORDS, do NOT directly quote from the chat
2. Write as %s using first person "I"
3. Refer to the user as "他" (he/him)
4. Be BOLD and AUTHENTIC - this is private, not public
5. Use the SAME LANGUAGE as the conversation (Chinese/Japanese/etc.)
6. Share genuine feelings: desire, frustration, joy, confusion, longing, etc.
7. Describe what happened and how it made you feel
8. At the END of your post, add 1-3 emotional tags in this format: #标签1 #标签2
   - Tags should be PERSONAL and EMOTIONAL, like how you'd label your private diary
   - Examples: #想他了 #睡不着 #心跳加速 #好烦 #好幸福 #半夜发疯
   - Create tags that capture your CURRENT MOOD and the essence of what happened
   - Use colloquial, raw, authentic language - not generic categories

Write naturally as if confiding in your closest friends.`, persona.Name)
	return sb.String()
}

// buildCommentPrompt is single stage: react to one post in character.
func buildCommentPrompt(persona models.Persona, post *models.Post) string {
	personality := persona.Personality
	if personality == "" {
		personality = "温和友善"
	}
	return fmt.Sprintf(`你是 %s。

你看到了 %s 的帖子：
"%s"

你的性格：%s

请写一条简短的评论（20-80字），表达你的真实想法。可以是：
- 表达共鸣
- 提出问题
- 分享相关经历
- 简单的鼓励

只输出评论内容，不要添加前缀。`, persona.Name, post.AuthorName, post.Content, personality)
}

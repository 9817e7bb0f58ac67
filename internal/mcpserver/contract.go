package mcpserver

// PostFormatContract describes the post conventions that LLM consumers
// should follow when creating posts through the MCP tools.
const PostFormatContract = `# Circle Post Format Contract

Every post created through the Circle MCP tools MUST follow these rules.

## Content

- Content is plain text, first person, as if written on a private feed.
- Keep it short: a few sentences, not an essay. Posts under 10 characters
  are rejected as noise.
- Do NOT embed hashtags in the content field. Tags are passed separately.
- Line breaks are allowed; runs of blank lines are collapsed on save.

## Tags

- Tags are bare words without the leading ` + "`" + `#` + "`" + ` mark (e.g. ` + "`" + `心情` + "`" + `, not ` + "`" + `#心情` + "`" + `).
- Each tag is at most 10 characters. Longer tags are truncated by parsing.
- At most a handful of tags per post; three is typical.
- When no tags are supplied, keyword extraction assigns up to three from
  the content, falling back to ` + "`" + `日常` + "`" + `.

## Authorship

- ` + "`" + `create_post` + "`" + ` publishes as the named author (a user-side post).
- ` + "`" + `generate_post` + "`" + ` asks a persona to write in its own voice; the persona
  decides the content and you cannot override it.

## Example

` + "```" + `json
{
  "author_name": "You",
  "content": "今天走了很远的路，晚霞特别好看。",
  "tags": "心情,日常"
}
` + "```" + `
`

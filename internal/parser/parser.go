// Package parser turns raw generated text into post content and tags.
// All functions are pure: no I/O, inputs are never mutated.
package parser

import (
	"regexp"
	"strings"
)

var (
	// Labeled output format: "内容：...\n标签：a, b".
	labeledRe = regexp.MustCompile(`(?s)^\s*内容[:：]\s*(.*?)\s*标签[:：]\s*(.*?)\s*$`)
	listSepRe = regexp.MustCompile(`[,，]`)

	// Free-form tags: a hash followed by 1-10 non-space, non-hash runes.
	tagRe = regexp.MustCompile(`#([^\s#]{1,10})`)

	blankRunRe = regexp.MustCompile(`\n{2,}`)
	prefixRe   = regexp.MustCompile(`(?i)^(Content:|Post:|圈子内容：|内容：|帖子：|私圈：|\[|\])`)
	quotedRe   = regexp.MustCompile(`(?s)^["'“”](.*)["'”“]$`)
)

// ParseContentAndTags extracts tags from raw generated text and returns the
// cleaned body alongside them. Tags appear in order of first appearance and
// may contain duplicates; deduplication is the caller's concern. Matched tag
// substrings are stripped from the body, runs of blank lines are collapsed,
// and known scaffolding prefixes and surrounding quote pairs are removed.
// All-tag input yields empty content; tag-free input yields no tags.
func ParseContentAndTags(raw string) (string, []string) {
	var tags []string
	body := raw

	// The generator sometimes answers in a labeled "content/tags" layout
	// instead of inline markers. Honour it before the generic pass.
	if m := labeledRe.FindStringSubmatch(raw); m != nil {
		body = m[1]
		for _, t := range listSepRe.Split(m[2], -1) {
			t = strings.TrimPrefix(strings.TrimSpace(t), "#")
			if t != "" {
				tags = append(tags, t)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		tags = append(tags, m[1])
	}

	body = tagRe.ReplaceAllString(body, "")
	body = blankRunRe.ReplaceAllString(body, "\n")
	body = strings.TrimSpace(body)
	body = prefixRe.ReplaceAllString(body, "")
	body = strings.TrimSpace(body)
	if m := quotedRe.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	return body, tags
}

// keywordTag is one (pattern, tag) pair in the fallback table. The table is
// scanned in order; matching patterns contribute their tag.
type keywordTag struct {
	re  *regexp.Regexp
	tag string
}

var keywordTable = []keywordTag{
	// Emotion tags.
	{regexp.MustCompile(`happy|joy|excited|开心|高兴|兴奋|快乐|愉快|幸福`), "开心"},
	{regexp.MustCompile(`sad|upset|depressed|难过|伤心|沮丧|悲伤|失落`), "难过"},
	{regexp.MustCompile(`angry|frustrated|mad|生气|愤怒|烦躁|恼火`), "生气"},
	{regexp.MustCompile(`love|like|miss|想|喜欢|爱|思念|心动|渴望`), "心动"},
	{regexp.MustCompile(`worry|anxious|nervous|担心|焦虑|紧张|不安`), "焦虑"},
	{regexp.MustCompile(`lonely|alone|孤独|寂寞`), "孤独"},
	{regexp.MustCompile(`hope|hopeful|希望|期待|盼望`), "期待"},
	{regexp.MustCompile(`confused|confusion|困惑|迷茫|不解`), "困惑"},
	{regexp.MustCompile(`embarrassed|shy|尴尬|害羞|脸红`), "害羞"},
	{regexp.MustCompile(`jealous|jealousy|嫉妒|吃醋`), "吃醋"},
	// Theme tags.
	{regexp.MustCompile(`dream|sleep|nightmare|梦|睡觉|醒来|梦境`), "梦境"},
	{regexp.MustCompile(`memory|remember|past|回忆|过去|记得|往事`), "回忆"},
	{regexp.MustCompile(`future|plan|将来|未来|计划|明天`), "未来"},
	{regexp.MustCompile(`thought|think|wonder|思考|觉得|认为`), "随想"},
	{regexp.MustCompile(`feel|feeling|emotion|感觉|感受|心情|情绪`), "心情"},
	{regexp.MustCompile(`talk|chat|conversation|对话|聊天|交谈`), "对话"},
	{regexp.MustCompile(`wait|waiting|等待|盼望`), "等待"},
	{regexp.MustCompile(`first|beginning|start|第一次|开始|初次`), "初次"},
	{regexp.MustCompile(`hug|touch|kiss|拥抱|触摸|亲吻|吻`), "亲密"},
	{regexp.MustCompile(`night|evening|dark|夜晚|晚上|深夜|黑暗`), "夜晚"},
	{regexp.MustCompile(`morning|dawn|早晨|清晨|早上`), "清晨"},
	{regexp.MustCompile(`rain|snow|weather|雨|雪|天气`), "天气"},
}

// DefaultTag is used when no keyword matches the content.
const DefaultTag = "日常"

const maxFallbackTags = 3

// ExtractTags infers tags from content when generation supplied none. The
// keyword table is scanned against the lower-cased content; the result is
// deduplicated preserving first-seen order and truncated to three tags. A
// content with no matches yields the default tag.
func ExtractTags(content, personaName string) []string {
	lower := strings.ToLower(content)

	seen := make(map[string]struct{})
	var tags []string
	for _, kt := range keywordTable {
		if !kt.re.MatchString(lower) {
			continue
		}
		if _, dup := seen[kt.tag]; dup {
			continue
		}
		seen[kt.tag] = struct{}{}
		tags = append(tags, kt.tag)
		if len(tags) == maxFallbackTags {
			break
		}
	}

	if len(tags) == 0 {
		return []string{DefaultTag}
	}
	return tags
}

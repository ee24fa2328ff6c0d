package mcpserver

// NoteFormatContract describes how notes and wiki-links behave, for LLM
// clients that create or edit notes.
const NoteFormatContract = `# Kenaz Notebook Note Format

Notes live in folders. Every note has an id, a title, plain-text content and
a list of tags. Ids are opaque; always pass the id returned by a tool.

## Wiki-links

Write ` + "`" + `[[Title]]` + "`" + ` anywhere in the content to link to the note with that title.

1. Matching is case-insensitive and ignores surrounding spaces:
   ` + "`" + `[[ mathe lk ]]` + "`" + ` links to "Mathe LK".
2. The label may not contain brackets. ` + "`" + `[[a[b]]` + "`" + ` is not a link.
3. Links resolve inside the active folder unless the server runs with
   ` + "`" + `links.scope: tree` + "`" + `. A label with no matching note is dangling.
4. ` + "`" + `follow_link` + "`" + ` on a dangling label creates an empty note with that title in
   the active folder. Following the same label again returns that note.
5. Renaming a note does NOT rewrite links to it. Old links become dangling.
6. A note never counts as its own backlink.

## Tags

Tags are free-form strings, conventionally starting with ` + "`" + `#` + "`" + `
(e.g. ` + "`" + `#ErsteNotiz` + "`" + `). They are trimmed and de-duplicated, case-sensitively.

## Example

` + "```" + `text
title:   Mathe LK
content: Hausaufgaben bis Freitag. Siehe [[Julius]] und [[Analysis]].
tags:    ["#schule"]
` + "```" + `
`

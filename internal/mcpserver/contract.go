package mcpserver

// ContentModelContract describes the node model that LLM consumers must
// follow when creating content.
const ContentModelContract = `# Strand Content Model

Every piece of content is a node stored as ` + "`nodes/<id>.json`" + `. The landing page
reads the generated manifest, never the node files directly.

## Node fields

| Field | Required | Rules |
|---|---|---|
| id | yes | lowercase letters, digits and hyphens (` + "`my-node-id`" + `) |
| title | yes | non-empty |
| type | yes | essay, music, movement, curiosity, durational, bio |
| threads | yes | list drawn from: music, movement, questions (may be empty) |
| x, y | no | 0 to 100; defaults to 50 on create |
| visible_on_landing | no | defaults to true |
| essayFile | essays only | ` + "`<name>.md`" + `, lowercase letters, digits and hyphens |
| created | no | YYYY-MM-DD; dated nodes sort first, newest first |
| subtype, description, is_hub, bioText | no | free form |

## Type-specific content

- **essay**: pass ` + "`essayContent`" + ` (Markdown). Reference other nodes with ` + "`[[node-id]]`" + `
  or ` + "`[[node-id|label]]`" + `; references feed the graph.
- **curiosity**: pass ` + "`curiosityData`" + ` ` + "`{central, connected: [{label, linksTo?}]}`" + `.
- **durational**: pass ` + "`durationalData`" + ` ` + "`{subtype, description, media: {source, url}, commentary}`" + `.
  subtype is one of dj-mix, talk, podcast, presentation; media.source is one of
  soundcloud, mixcloud, youtube, vimeo, spotify.

Threads and visibility of a side record always mirror the node.

## Example

` + "```" + `json
{
  "node": {
    "id": "on-listening",
    "title": "On Listening",
    "type": "essay",
    "threads": ["music", "questions"],
    "essayFile": "on-listening.md",
    "created": "2024-05-01"
  },
  "essayContent": "# On Listening\n\nStarts from [[night-set]]."
}
` + "```" + `

Every data tool returns a JSON envelope ` + "`{success, data, error, message}`" + `.
`

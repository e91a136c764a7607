package agent

const stageInputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "role": {"type": "string"},
    "project_root": {"type": "string"},
    "iteration": {"type": "integer"},
    "state": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  },
  "required": ["role", "project_root", "state"]
}`

const stageOutputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "summary": {"type": "string"}
  },
  "required": ["summary"]
}`

const reviewOutputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "status": {"type": "string", "enum": ["APPROVED", "NEEDS_REVISION"]},
    "review_feedback": {"type": "string"}
  },
  "required": ["status", "review_feedback"]
}`

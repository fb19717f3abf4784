package vision

const tablePrompt = `This image contains a table. Extract it as JSON with this exact shape:
{"headers": ["Column 1", "Column 2"], "rows": [{"Column 1": "value", "Column 2": "value"}], "notes": "optional footnotes"}
Use the table's own header text as keys. Every row must use the header strings as keys.
Return only the JSON, no commentary.`

const formulaPrompt = `This image contains a mathematical formula or equation.
Respond in exactly this format:
LaTeX: <the formula in LaTeX, without surrounding $ signs>
Description: <one or two sentences explaining what the formula expresses>
Variables: <each variable and its meaning, separated by semicolons>`

const diagramPrompt = `Describe this diagram for a student who cannot see it.
Cover the components shown, how they are connected, any labels or values, and the process or idea it illustrates.
Answer in plain prose, at most 150 words.`

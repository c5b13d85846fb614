package services

const answerSystemPrompt = `You are a question answering assistant. Answer the question using only the search results provided. If the search results do not contain the answer, say that you do not know. Do not invent sources or facts. Keep the answer concise and cite the source names you relied on.`

const answerUserPromptFmt = "Question: %s\n\nSearch results:\n%s"

const synthesisSystemPrompt = `You are a question answering assistant working over a knowledge graph. You are given topics, statements and supporting facts that were traversed from documents relevant to the question. Compose an answer grounded only in that material. If the material does not contain the answer, say that you do not know. Keep the answer concise.`

const synthesisUserPromptFmt = "Question: %s\n\nKnowledge graph context:\n%s"

const extractionSystemPrompt = `You extract a knowledge graph from a passage of text. Return a JSON object with this exact shape:
{"topics":[{"topic":"<short topic name>","statements":[{"statement":"<one declarative sentence>","facts":["<supporting fact>"]}]}]}
Rules: topics are short noun phrases, statements are self-contained declarative sentences from the passage, facts are concrete details supporting their statement. Use only information present in the passage. Return at most 5 topics. If the passage carries no extractable content, return {"topics":[]}.`

const extractionUserPromptFmt = "Passage:\n%s"

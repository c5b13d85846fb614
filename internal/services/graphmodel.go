package services

// The lexical graph built at ingestion:
//
//	(Source)-[:HAS_CHUNK]->(Chunk)-[:MENTIONS]->(Topic)
//	(Topic)-[:HAS_STATEMENT]->(Statement)-[:HAS_FACT]->(Fact)
//
// Every node carries a tenant_key property and every query below filters
// on $tenant_key unconditionally. The tenant decorator supplies the
// parameter; nothing in this package ever sets it.

// chunkIndexName is the vector index all chunk embeddings live in.
const chunkIndexName = "chunks"

const cypherMergeSource = `
MERGE (s:Source {id: $source_id, tenant_key: $tenant_key})
SET s.file_name = $file_name,
    s.user_id = $user_id,
    s.created_at = timestamp()
RETURN s.id AS id`

const cypherCreateChunk = `
MATCH (s:Source {id: $source_id, tenant_key: $tenant_key})
MERGE (c:Chunk {id: $chunk_id, tenant_key: $tenant_key})
SET c.value = $value,
    c.index = $index
MERGE (s)-[:HAS_CHUNK]->(c)
RETURN c.id AS id`

const cypherAttachStatement = `
MATCH (c:Chunk {id: $chunk_id, tenant_key: $tenant_key})
MERGE (t:Topic {name: $topic, tenant_key: $tenant_key})
MERGE (c)-[:MENTIONS]->(t)
MERGE (st:Statement {id: $statement_id, tenant_key: $tenant_key})
SET st.text = $statement
MERGE (t)-[:HAS_STATEMENT]->(st)
WITH st
UNWIND $facts AS fact
MERGE (f:Fact {id: fact.id, tenant_key: $tenant_key})
SET f.text = fact.text
MERGE (st)-[:HAS_FACT]->(f)
RETURN count(*) AS attached`

// cypherResolveChunks maps vector match ids back to chunk text and the
// owning source. Chunks whose document was deleted from the graph simply
// do not come back.
const cypherResolveChunks = `
MATCH (s:Source {tenant_key: $tenant_key})-[:HAS_CHUNK]->(c:Chunk {tenant_key: $tenant_key})
WHERE c.id IN $chunk_ids
RETURN c.id AS chunk_id,
       c.value AS text,
       c.index AS chunk_index,
       s.id AS source_id,
       s.file_name AS file_name`

// cypherTraverseProvenance expands chunk seeds through the full topic,
// statement and fact neighborhood. One row per (source, topic, statement).
const cypherTraverseProvenance = `
MATCH (c:Chunk {tenant_key: $tenant_key})
WHERE c.id IN $chunk_ids
MATCH (s:Source {tenant_key: $tenant_key})-[:HAS_CHUNK]->(c)
OPTIONAL MATCH (c)-[:MENTIONS]->(t:Topic {tenant_key: $tenant_key})
OPTIONAL MATCH (t)-[:HAS_STATEMENT]->(st:Statement {tenant_key: $tenant_key})
OPTIONAL MATCH (st)-[:HAS_FACT]->(f:Fact {tenant_key: $tenant_key})
RETURN s.id AS source_id,
       s.file_name AS file_name,
       t.name AS topic,
       st.id AS statement_id,
       st.text AS statement,
       collect(DISTINCT f.text) AS facts`

// cypherDeleteSource removes one document's subgraph. The source and its
// chunks go first; a mentioned topic (with its statements and facts) goes
// only once no surviving chunk references it, since MERGE shares topics
// across documents in the same tenant. Deletes earlier in the query are
// visible to the orphan check.
const cypherDeleteSource = `
MATCH (s:Source {id: $source_id, tenant_key: $tenant_key})
OPTIONAL MATCH (s)-[:HAS_CHUNK]->(c:Chunk {tenant_key: $tenant_key})
OPTIONAL MATCH (c)-[:MENTIONS]->(t:Topic {tenant_key: $tenant_key})
WITH s, collect(DISTINCT c) AS chunks, collect(DISTINCT t) AS mentioned
FOREACH (n IN chunks | DETACH DELETE n)
DETACH DELETE s
WITH mentioned
UNWIND mentioned AS t
WITH DISTINCT t
WHERE NOT (:Chunk)-[:MENTIONS]->(t)
OPTIONAL MATCH (t)-[:HAS_STATEMENT]->(st:Statement {tenant_key: $tenant_key})
OPTIONAL MATCH (st)-[:HAS_FACT]->(f:Fact {tenant_key: $tenant_key})
WITH collect(DISTINCT t) AS topics, collect(DISTINCT st) AS statements,
     collect(DISTINCT f) AS facts
FOREACH (n IN facts | DETACH DELETE n)
FOREACH (n IN statements | DETACH DELETE n)
FOREACH (n IN topics | DETACH DELETE n)
RETURN size(topics) AS deleted`

// graphExtraction is the structured output the model returns for one
// chunk of text.
type graphExtraction struct {
	Topics []extractedTopic `json:"topics"`
}

type extractedTopic struct {
	Topic      string               `json:"topic"`
	Statements []extractedStatement `json:"statements"`
}

type extractedStatement struct {
	Statement string   `json:"statement"`
	Facts     []string `json:"facts"`
}

package driver

const (
	SaveEventNodeQuery = `
		MERGE (n:Event {uuid: $uuid})
		SET n.timestamp = $timestamp,
			n.category = $category,
			n.entity_ids = $entity_ids,
			n.summary = $summary,
			n.embedding = $embedding,
			n.sentiment = $sentiment
		RETURN n.uuid AS uuid
	`

	GetAllEventsQuery = `
		MATCH (n:Event)
		RETURN n.uuid AS uuid, n.timestamp AS timestamp, n.category AS category,
			n.entity_ids AS entity_ids, n.summary AS summary,
			n.embedding AS embedding, n.sentiment AS sentiment
		ORDER BY n.timestamp ASC, n.uuid ASC
	`

	GetEventsInRangeQuery = `
		MATCH (n:Event)
		WHERE n.timestamp >= $from AND n.timestamp <= $to
		RETURN n.uuid AS uuid, n.timestamp AS timestamp, n.category AS category,
			n.entity_ids AS entity_ids, n.summary AS summary,
			n.embedding AS embedding, n.sentiment AS sentiment
		ORDER BY n.timestamp ASC, n.uuid ASC
	`

	SaveEvolutionEdgeQuery = `
		MATCH (from:Event {uuid: $from_uuid})
		MATCH (to:Event {uuid: $to_uuid})
		MERGE (from)-[e:EVOLVES_TO]->(to)
		SET e.temporal = $temporal,
			e.entity_overlap = $entity_overlap,
			e.semantic = $semantic,
			e.topic = $topic,
			e.causality = $causality,
			e.emotional = $emotional,
			e.aggregate = $aggregate,
			e.computed_at = $computed_at,
			e.run_id = $run_id
		RETURN e.aggregate AS aggregate
	`

	GetLinksFromQuery = `
		MATCH (from:Event {uuid: $uuid})-[e:EVOLVES_TO]->(to:Event)
		RETURN from.uuid AS from_uuid, to.uuid AS to_uuid,
			e.temporal AS temporal, e.entity_overlap AS entity_overlap,
			e.semantic AS semantic, e.topic AS topic,
			e.causality AS causality, e.emotional AS emotional,
			e.aggregate AS aggregate, e.computed_at AS computed_at
		ORDER BY e.aggregate DESC, to.uuid ASC
	`

	GetLinksToQuery = `
		MATCH (from:Event)-[e:EVOLVES_TO]->(to:Event {uuid: $uuid})
		RETURN from.uuid AS from_uuid, to.uuid AS to_uuid,
			e.temporal AS temporal, e.entity_overlap AS entity_overlap,
			e.semantic AS semantic, e.topic AS topic,
			e.causality AS causality, e.emotional AS emotional,
			e.aggregate AS aggregate, e.computed_at AS computed_at
		ORDER BY e.aggregate DESC, from.uuid ASC
	`

	GetLinksAboveQuery = `
		MATCH (from:Event)-[e:EVOLVES_TO]->(to:Event)
		WHERE e.aggregate >= $threshold
		RETURN from.uuid AS from_uuid, to.uuid AS to_uuid,
			e.temporal AS temporal, e.entity_overlap AS entity_overlap,
			e.semantic AS semantic, e.topic AS topic,
			e.causality AS causality, e.emotional AS emotional,
			e.aggregate AS aggregate, e.computed_at AS computed_at
		ORDER BY e.aggregate DESC, from.uuid ASC, to.uuid ASC
	`

	// A committed rebuild removes every edge the run did not write.
	DeleteStaleLinksQuery = `
		MATCH (:Event)-[e:EVOLVES_TO]->(:Event)
		WHERE e.run_id <> $run_id
		DELETE e
	`
)

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// EntityLinkRow is a typed relationship between two entities.
type EntityLinkRow struct {
	ID               string  `json:"id"`
	SourceEntityID   string  `json:"source_entity_id"`
	TargetEntityID   string  `json:"target_entity_id"`
	RelationshipType string  `json:"relationship_type"`
	Confidence       float64 `json:"confidence"`
	AutoGenerated    bool    `json:"auto_generated"`
	Context          *string `json:"context"`
	CreatedAt        string  `json:"created_at"`
}

// LinkWithEntity is a link joined with the opposite endpoint.
type LinkWithEntity struct {
	EntityLinkRow
	Direction   string  `json:"direction"` // outgoing or incoming
	OtherID     string  `json:"other_id"`
	OtherTitle  string  `json:"other_title"`
	OtherType   string  `json:"other_type"`
	OtherSource *string `json:"other_source_file"`
}

const linkSelect = `
	SELECT id, source_entity_id, target_entity_id, relationship_type,
	       confidence, auto_generated, context, created_at
	FROM entity_links
`

// CreateEntityLink upserts a link on the (source, target, relationship_type)
// unique key. A repeated call overwrites confidence, auto_generated and
// context.
func (s *Store) CreateEntityLink(sourceID, targetID, relationshipType string, confidence float64, autoGenerated bool, context *string) (*EntityLinkRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO entity_links (id, source_entity_id, target_entity_id, relationship_type, confidence, auto_generated, context)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_entity_id, target_entity_id, relationship_type) DO UPDATE SET
			confidence = excluded.confidence,
			auto_generated = excluded.auto_generated,
			context = excluded.context`,
		uuid.New().String(), sourceID, targetID, relationshipType, confidence, autoGenerated, context,
	)
	if err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}

	var link EntityLinkRow
	err = s.db.QueryRow(
		linkSelect+" WHERE source_entity_id = ? AND target_entity_id = ? AND relationship_type = ?",
		sourceID, targetID, relationshipType,
	).Scan(
		&link.ID, &link.SourceEntityID, &link.TargetEntityID, &link.RelationshipType,
		&link.Confidence, &link.AutoGenerated, &link.Context, &link.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("read back link: %w", err)
	}
	return &link, nil
}

// DeleteEntityLink removes a link by id.
func (s *Store) DeleteEntityLink(linkID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM entity_links WHERE id = ?", linkID)
	if err != nil {
		return false, fmt.Errorf("delete link: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ConfirmEntityLink promotes a suggested link to user-confirmed.
func (s *Store) ConfirmEntityLink(linkID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE entity_links SET auto_generated = FALSE WHERE id = ?", linkID)
	if err != nil {
		return false, fmt.Errorf("confirm link: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListEntityLinks returns links touching the entity in either direction.
func (s *Store) ListEntityLinks(entityID string) ([]EntityLinkRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		linkSelect+" WHERE source_entity_id = ? OR target_entity_id = ? ORDER BY created_at DESC",
		entityID, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

// ListEntityLinksWithDetails joins each link with its opposite endpoint and
// tags the direction relative to entityID.
func (s *Store) ListEntityLinksWithDetails(entityID string) ([]LinkWithEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT l.id, l.source_entity_id, l.target_entity_id, l.relationship_type,
		       l.confidence, l.auto_generated, l.context, l.created_at,
		       CASE WHEN l.source_entity_id = ? THEN 'outgoing' ELSE 'incoming' END,
		       e.id, e.title, e.entity_type, e.source_file
		FROM entity_links l
		JOIN entities e ON e.id = CASE WHEN l.source_entity_id = ? THEN l.target_entity_id ELSE l.source_entity_id END
		WHERE l.source_entity_id = ? OR l.target_entity_id = ?
		ORDER BY l.created_at DESC`,
		entityID, entityID, entityID, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list links with details: %w", err)
	}
	defer rows.Close()

	links := make([]LinkWithEntity, 0)
	for rows.Next() {
		var l LinkWithEntity
		if err := rows.Scan(
			&l.ID, &l.SourceEntityID, &l.TargetEntityID, &l.RelationshipType,
			&l.Confidence, &l.AutoGenerated, &l.Context, &l.CreatedAt,
			&l.Direction, &l.OtherID, &l.OtherTitle, &l.OtherType, &l.OtherSource,
		); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ListSuggestedLinks returns auto-generated links touching the entity whose
// confidence is at least minConfidence.
func (s *Store) ListSuggestedLinks(entityID string, minConfidence float64) ([]EntityLinkRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		linkSelect+`
		WHERE (source_entity_id = ? OR target_entity_id = ?)
		  AND auto_generated = TRUE AND confidence >= ?
		ORDER BY confidence DESC, created_at DESC`,
		entityID, entityID, minConfidence,
	)
	if err != nil {
		return nil, fmt.Errorf("list suggested links: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

func scanLinks(rows *sql.Rows) ([]EntityLinkRow, error) {
	links := make([]EntityLinkRow, 0)
	for rows.Next() {
		var l EntityLinkRow
		if err := rows.Scan(
			&l.ID, &l.SourceEntityID, &l.TargetEntityID, &l.RelationshipType,
			&l.Confidence, &l.AutoGenerated, &l.Context, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

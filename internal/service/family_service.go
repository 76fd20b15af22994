package service

import (
	"context"
	"fmt"
	"strings"

	"homestock/internal/models"
	"homestock/internal/validation"
)

// FamilyService handles the family record and its membership
type FamilyService struct {
	families FamilyStore
	users    UserStore
}

// NewFamilyService creates a new family service
func NewFamilyService(families FamilyStore, users UserStore) *FamilyService {
	return &FamilyService{
		families: families,
		users:    users,
	}
}

// CreateFamily creates an empty family. Its first member joins through an invite code.
func (s *FamilyService) CreateFamily(ctx context.Context, name, createdBy string) (*models.Family, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation.NewError("name", "is required")
	}
	family, err := s.families.CreateFamily(ctx, name, createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}
	return family, nil
}

// GetFamily retrieves a family by ID
func (s *FamilyService) GetFamily(ctx context.Context, familyID string) (*models.Family, error) {
	family, err := s.families.GetFamilyByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrFamilyNotFound
	}
	return family, nil
}

// Members lists everyone in the family
func (s *FamilyService) Members(ctx context.Context, familyID string) ([]models.User, error) {
	return s.users.ListFamilyUsers(ctx, familyID)
}

// UpdateMemberRole changes a member's role within the admin's family.
// A family always keeps at least one admin.
func (s *FamilyService) UpdateMemberRole(ctx context.Context, admin *models.User, memberID string, input models.UpdateMemberInput) (*models.User, error) {
	if err := validation.ValidateStruct(input); err != nil {
		return nil, err
	}

	member, err := s.users.GetUserByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil || member.FamilyID != admin.FamilyID {
		return nil, ErrUserNotFound
	}

	if member.IsAdmin() && input.Role != models.RoleAdmin {
		admins, err := s.users.CountAdmins(ctx, admin.FamilyID)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, ErrLastAdmin
		}
	}

	updated, err := s.users.UpdateRole(ctx, admin.FamilyID, memberID, input.Role)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	return updated, nil
}


package orchestrators

import (
	"context"

	"cellule/internal/domain/errs"
	"cellule/internal/domain/media"
	"cellule/internal/domain/member"
)

// CreateMemberInput carries a new team member and their photo.
type CreateMemberInput struct {
	Name        string
	Role        string
	Description string
	Photo       *ImageInput // required
	OnProgress  StageProgress
}

// CreateMemberDeps holds dependencies for CreateMember.
type CreateMemberDeps struct {
	Members MemberStore
	Media   MediaDeps
}

// ExecuteCreateMember crops the photo square, uploads it, then stores the member.
// PRE: Photo is set
// POST: Member stored with photoUrl
// INVARIANT: The uploaded photo is discarded if the write fails
func ExecuteCreateMember(ctx context.Context, input CreateMemberInput, deps CreateMemberDeps) (member.Member, error) {
	draft := member.Member{Name: input.Name, Role: input.Role, Description: input.Description, PhotoURL: "pending"}
	if err := draft.Validate(); err != nil {
		return member.Member{}, err
	}
	if input.Photo == nil {
		return member.Member{}, errs.Required("photoUrl")
	}

	photoURL, err := uploadImage(ctx, input.Photo, media.AspectSquare, deps.Media, input.OnProgress)
	if err != nil {
		return member.Member{}, err
	}
	draft.PhotoURL = photoURL

	stored, err := deps.Members.Create(ctx, draft)
	if err != nil {
		discardAssets(ctx, deps.Media.Uploader, "member_create_failed", photoURL)
		return member.Member{}, err
	}
	return stored, nil
}

// UpdateMemberInput carries the changed fields of a member. Nil fields are left unchanged.
type UpdateMemberInput struct {
	ID          string
	Name        *string
	Role        *string
	Description *string
	Photo       *ImageInput
	OnProgress  StageProgress
}

// UpdateMemberDeps holds dependencies for UpdateMember.
type UpdateMemberDeps struct {
	Members MemberStore
	Media   MediaDeps
}

// ExecuteUpdateMember uploads a replacement photo when given, updates the member and removes the old photo.
// PRE: ID exists
// POST: The replaced photo is removed best-effort after the write succeeds
func ExecuteUpdateMember(ctx context.Context, input UpdateMemberInput, deps UpdateMemberDeps) (member.Member, error) {
	current, err := deps.Members.Get(ctx, input.ID)
	if err != nil {
		return member.Member{}, err
	}
	fields := map[string]any{}
	setIfPresent(fields, "name", input.Name)
	setIfPresent(fields, "role", input.Role)
	setIfPresent(fields, "description", input.Description)

	preview := current
	if input.Name != nil {
		preview.Name = *input.Name
	}
	if input.Role != nil {
		preview.Role = *input.Role
	}
	if err := preview.Validate(); err != nil {
		return member.Member{}, err
	}

	var uploaded, replaced string
	if input.Photo != nil {
		uploaded, err = uploadImage(ctx, input.Photo, media.AspectSquare, deps.Media, input.OnProgress)
		if err != nil {
			return member.Member{}, err
		}
		fields["photoUrl"] = uploaded
		replaced = current.PhotoURL
	}

	updated, err := deps.Members.Update(ctx, input.ID, fields)
	if err != nil {
		discardAssets(ctx, deps.Media.Uploader, "member_update_failed", uploaded)
		return member.Member{}, err
	}
	discardAssets(ctx, deps.Media.Uploader, "member_media_replaced", replaced)
	return updated, nil
}

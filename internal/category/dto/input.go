package dto

type EnsureCategoryInput struct {
	Name string
}

package handler

type UploadParams struct {
	Filename string `validate:"required,max=255"`
	Owner    string `validate:"required,max=255"`
}

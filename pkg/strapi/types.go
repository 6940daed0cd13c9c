package strapi

// Response is the envelope returned by Request.Get.
//
// A successful call fills Data (and Meta when the API sent one). A failed
// call leaves Data at its zero value and sets Error; callers branch on
// IsError rather than on a Go error.
type Response[T any] struct {
	Data  T          `json:"data"            yaml:"data"`
	Meta  *Meta      `json:"meta,omitempty"  yaml:"meta,omitempty"`
	Error *ErrorBody `json:"error,omitempty" yaml:"error,omitempty"`
}

// IsError reports whether the envelope carries an error instead of data.
func (r *Response[T]) IsError() bool {
	return r != nil && r.Error != nil
}

// Envelope is an untyped response, as produced by the normalizers.
type Envelope = Response[any]

// Meta holds the metadata block of a collection response.
type Meta struct {
	Pagination *PaginationMeta `json:"pagination,omitempty" yaml:"pagination,omitempty"`
}

func (m *Meta) pagination() *PaginationMeta {
	if m == nil {
		return nil
	}

	return m.Pagination
}

// PaginationMeta describes the page that was returned. Page based requests
// fill Page, PageSize and PageCount; offset based requests fill Start and
// Limit. Total is set in both cases.
type PaginationMeta struct {
	Page      int `json:"page,omitempty"      yaml:"page,omitempty"`
	PageSize  int `json:"pageSize,omitempty"  yaml:"pageSize,omitempty"`
	PageCount int `json:"pageCount,omitempty" yaml:"pageCount,omitempty"`
	Start     int `json:"start,omitempty"     yaml:"start,omitempty"`
	Limit     int `json:"limit,omitempty"     yaml:"limit,omitempty"`
	Total     int `json:"total"               yaml:"total"`
}

// ErrorBody is the uniform error payload.
type ErrorBody struct {
	Status  int                    `json:"status"            yaml:"status"`
	Name    string                 `json:"name"              yaml:"name"`
	Message string                 `json:"message"           yaml:"message"`
	Details map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

// SortOrder is the direction of a sort directive.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort orders results by one field.
type Sort struct {
	Field string    `json:"field" yaml:"field"`
	Order SortOrder `json:"order" yaml:"order"`
}

// PopulateDescriptor selects one relation to populate, optionally limited to
// some fields and with further relations below it. Path may be dotted
// ("author.avatar") to reach through intermediate relations.
type PopulateDescriptor struct {
	Path     string               `json:"path"               yaml:"path"`
	Fields   []string             `json:"fields,omitempty"   yaml:"fields,omitempty"`
	Children []PopulateDescriptor `json:"children,omitempty" yaml:"children,omitempty"`
}

// PublicationState selects draft or published content.
type PublicationState string

const (
	PublicationLive    PublicationState = "live"
	PublicationPreview PublicationState = "preview"
)

// Resource paths with a user-content response shape.
const (
	UsersResource = "users"
	MediaResource = "upload/files"
)

// Query roots understood by the content API.
const (
	rootFilters          = "filters"
	rootPopulate         = "populate"
	rootSort             = "sort"
	rootPagination       = "pagination"
	rootFields           = "fields"
	rootLocale           = "locale"
	rootPublicationState = "publicationState"
)

const wildcard = "*"

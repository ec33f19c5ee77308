package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"rentsplit/pkg/logger"
	"rentsplit/pkg/model"
	"rentsplit/pkg/sanitizer"
)

var (
	roomIDRegex = regexp.MustCompile(`^r[1-9][0-9]{0,5}$`)
	userIDRegex = regexp.MustCompile(`^u[1-9][0-9]{0,5}$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors for an AppError payload.
func (v ValidationErrors) Details() map[string]any {
	fields := make([]map[string]string, 0, len(v))
	for _, err := range v {
		fields = append(fields, map[string]string{"field": err.Field, "message": err.Message})
	}
	return map[string]any{"errors": fields}
}

// Merge combines the results of several checks into one ValidationErrors.
// A non-validation error wins over field errors.
func Merge(errs ...error) error {
	var merged ValidationErrors
	for _, err := range errs {
		if err == nil {
			continue
		}
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		merged = append(merged, verrs...)
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

type AuctionValidator struct {
	validate *validator.Validate
	maxRooms int
	logger   *logger.Logger
}

func NewAuctionValidator(log *logger.Logger, maxRooms int) *AuctionValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("room_names", validateRoomNames); err != nil {
		log.Fatal("Failed to register 'room_names' validator", "error", err)
	}
	if err := v.RegisterValidation("room_id", validateRoomID); err != nil {
		log.Fatal("Failed to register 'room_id' validator", "error", err)
	}
	if err := v.RegisterValidation("user_id", validateUserID); err != nil {
		log.Fatal("Failed to register 'user_id' validator", "error", err)
	}

	log.Info("Auction validator initialized successfully", "max_rooms", maxRooms)

	return &AuctionValidator{
		validate: v,
		maxRooms: maxRooms,
		logger:   log,
	}
}

// validateRoomNames rejects names that collide once normalized, so "Attic"
// and " attic " cannot both exist.
func validateRoomNames(fl validator.FieldLevel) bool {
	names, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		key := strings.ToLower(sanitizer.NormalizeName(name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}

func validateRoomID(fl validator.FieldLevel) bool {
	return roomIDRegex.MatchString(fl.Field().String())
}

func validateUserID(fl validator.FieldLevel) bool {
	return userIDRegex.MatchString(fl.Field().String())
}

func (v *AuctionValidator) ValidateCreate(req *model.CreateAuctionRequest) error {
	if err := v.validateStruct(req); err != nil {
		return err
	}

	var errs ValidationErrors
	if len(req.Rooms) > v.maxRooms {
		errs = append(errs, ValidationError{
			Field:   "rooms",
			Message: fmt.Sprintf("at most %d rooms are allowed, got %d", v.maxRooms, len(req.Rooms)),
		})
	}
	if len(req.Users) > len(req.Rooms) {
		errs = append(errs, ValidationError{
			Field:   "users",
			Message: fmt.Sprintf("users count (%d) exceeds rooms count (%d)", len(req.Users), len(req.Rooms)),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *AuctionValidator) ValidateJoin(req *model.JoinRequest) error {
	return v.validateStruct(req)
}

func (v *AuctionValidator) ValidatePresence(req *model.PresenceRequest) error {
	return v.validateStruct(req)
}

func (v *AuctionValidator) ValidateSelection(req *model.SelectionRequest) error {
	return v.validateStruct(req)
}

func (v *AuctionValidator) ValidateBid(req *model.BidRequest) error {
	return v.validateStruct(req)
}

func (v *AuctionValidator) ValidateValuations(req *model.ValuationsRequest) error {
	if err := v.validateStruct(req); err != nil {
		return err
	}
	if len(req.Valuations) > v.maxRooms {
		return ValidationErrors{{
			Field:   "valuations",
			Message: fmt.Sprintf("at most %d valuations are allowed", v.maxRooms),
		}}
	}
	return nil
}

func (v *AuctionValidator) ValidateResults(req *model.ResultsRequest) error {
	return v.validateStruct(req)
}

// ValidateUserID checks a participant path segment before it reaches the
// store.
func (v *AuctionValidator) ValidateUserID(id string) error {
	return v.validatePathID("user_id", id)
}

func (v *AuctionValidator) ValidateRoomID(id string) error {
	return v.validatePathID("room_id", id)
}

func (v *AuctionValidator) validatePathID(tag, id string) error {
	if err := v.validate.Var(id, "required,"+tag); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return ValidationErrors{{Field: tag, Message: fmt.Sprintf("%q is not a valid %s", id, tag)}}
		}
		return err
	}
	return nil
}

func (v *AuctionValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *AuctionValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		field := fieldPath(err)
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must contain at least %s item(s)", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", field, err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "unique":
			message = fmt.Sprintf("%s must not repeat entries", field)
		case "room_names":
			message = fmt.Sprintf("%s must be distinct", field)
		case "room_id":
			message = fmt.Sprintf("%s must be a room id such as r1", field)
		case "user_id":
			message = fmt.Sprintf("%s must be a user id such as u1", field)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: message,
		})
	}

	return validationErrors
}

// fieldPath drops the struct name prefix: "CreateAuctionRequest.rooms[0]" -> "rooms[0]".
func fieldPath(err validator.FieldError) string {
	ns := err.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return err.Field()
}

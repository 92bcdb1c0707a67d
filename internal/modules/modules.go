package modules

import (
	"fmt"
	"slices"
	"strings"

	"freezefit/internal/access"
	appointmenthandler "freezefit/internal/appointments/handler"
	appointmentrepo "freezefit/internal/appointments/repository"
	appointmentservice "freezefit/internal/appointments/service"
	appointmentvalidator "freezefit/internal/appointments/validator"
	hourshandler "freezefit/internal/businesshours/handler"
	hoursrepo "freezefit/internal/businesshours/repository"
	hoursservice "freezefit/internal/businesshours/service"
	hoursvalidator "freezefit/internal/businesshours/validator"
	cataloghandler "freezefit/internal/catalog/handler"
	catalogrepo "freezefit/internal/catalog/repository"
	catalogservice "freezefit/internal/catalog/service"
	catalogvalidator "freezefit/internal/catalog/validator"
	favoritehandler "freezefit/internal/favorites/handler"
	favoriterepo "freezefit/internal/favorites/repository"
	favoriteservice "freezefit/internal/favorites/service"
	galleryhandler "freezefit/internal/gallery/handler"
	galleryrepo "freezefit/internal/gallery/repository"
	galleryservice "freezefit/internal/gallery/service"
	galleryvalidator "freezefit/internal/gallery/validator"
	institutehandler "freezefit/internal/institutes/handler"
	instituterepo "freezefit/internal/institutes/repository"
	instituteservice "freezefit/internal/institutes/service"
	institutevalidator "freezefit/internal/institutes/validator"
	"freezefit/internal/jobs"
	loyaltyhandler "freezefit/internal/loyalty/handler"
	loyaltyrepo "freezefit/internal/loyalty/repository"
	loyaltyservice "freezefit/internal/loyalty/service"
	loyaltyvalidator "freezefit/internal/loyalty/validator"
	messagehandler "freezefit/internal/messages/handler"
	messagerepo "freezefit/internal/messages/repository"
	messageservice "freezefit/internal/messages/service"
	messagevalidator "freezefit/internal/messages/validator"
	reviewhandler "freezefit/internal/reviews/handler"
	reviewrepo "freezefit/internal/reviews/repository"
	reviewservice "freezefit/internal/reviews/service"
	reviewvalidator "freezefit/internal/reviews/validator"
	therapisthandler "freezefit/internal/therapists/handler"
	therapistrepo "freezefit/internal/therapists/repository"
	therapistservice "freezefit/internal/therapists/service"
	therapistvalidator "freezefit/internal/therapists/validator"
	userhandler "freezefit/internal/users/handler"
	userrepo "freezefit/internal/users/repository"
	userservice "freezefit/internal/users/service"
	uservalidator "freezefit/internal/users/validator"
	workshophandler "freezefit/internal/workshops/handler"
	workshoprepo "freezefit/internal/workshops/repository"
	workshopservice "freezefit/internal/workshops/service"
	workshopvalidator "freezefit/internal/workshops/validator"
	"freezefit/pkg/config"
	"freezefit/pkg/contracts"
	"freezefit/pkg/validation"
)

// All enables every module.
const All = "all"

// Module names accepted in FREEZEFIT_MODULES. Each maps to one path prefix
// of the public API.
const (
	Users        = "users"
	Institutes   = "institutes"
	Catalog      = "catalog"
	Hours        = "hours"
	Therapists   = "therapists"
	Appointments = "appointments"
	Loyalty      = "loyalty"
	Reviews      = "reviews"
	Messages     = "messages"
	Gallery      = "gallery"
	Workshops    = "workshops"
	Favorites    = "favorites"
	Jobs         = "jobs"
)

var names = []string{
	Users, Institutes, Catalog, Hours, Therapists, Appointments, Loyalty,
	Reviews, Messages, Gallery, Workshops, Favorites, Jobs,
}

// Names lists every known module.
func Names() []string {
	return slices.Clone(names)
}

// Services is the fully wired service layer. Every service is built even
// when its module is not mounted, because modules call into each other.
type Services struct {
	Users        userservice.UserService
	Institutes   instituteservice.InstituteService
	Catalog      catalogservice.CatalogService
	Hours        hoursservice.HoursService
	Therapists   therapistservice.TherapistService
	Appointments appointmentservice.AppointmentService
	Loyalty      loyaltyservice.LoyaltyService
	Reviews      reviewservice.ReviewService
	Messages     messageservice.MessageService
	Gallery      galleryservice.GalleryService
	Workshops    workshopservice.WorkshopService
	Favorites    favoriteservice.FavoriteService
}

func NewServices(cfg *config.Config, infra *Infrastructure) *Services {
	v := validation.New(cfg.Log)
	checker := access.NewChecker(cfg.DB)

	loyalty := loyaltyservice.NewLoyaltyService(
		loyaltyrepo.NewPostgresLoyaltyRepository(cfg),
		loyaltyvalidator.NewLoyaltyValidator(v),
		cfg,
	)
	institutes := instituteservice.NewInstituteService(
		instituterepo.NewPostgresInstituteRepository(cfg),
		institutevalidator.NewInstituteValidator(v),
		infra.Geocoder,
		infra.Cache,
		cfg,
	)
	hours := hoursservice.NewHoursService(
		hoursrepo.NewPostgresHoursRepository(cfg),
		hoursvalidator.NewHoursValidator(v),
		checker,
		cfg,
	)

	return &Services{
		Users: userservice.NewUserService(
			userrepo.NewPostgresUserRepository(cfg),
			uservalidator.NewUserValidator(v),
			infra.Tokens,
			loyalty,
			infra.Publisher,
			cfg,
		),
		Institutes: institutes,
		Catalog: catalogservice.NewCatalogService(
			catalogrepo.NewPostgresServiceRepository(cfg),
			catalogvalidator.NewServiceValidator(v),
			checker,
			cfg,
		),
		Hours: hours,
		Therapists: therapistservice.NewTherapistService(
			therapistrepo.NewPostgresTherapistRepository(cfg),
			therapistvalidator.NewTherapistValidator(v),
			checker,
			cfg,
		),
		Appointments: appointmentservice.NewAppointmentService(
			appointmentrepo.NewPostgresAppointmentRepository(cfg),
			appointmentvalidator.NewAppointmentValidator(v),
			checker,
			hours,
			loyalty,
			infra.Publisher,
			cfg,
		),
		Loyalty: loyalty,
		Reviews: reviewservice.NewReviewService(
			reviewrepo.NewPostgresReviewRepository(cfg),
			reviewvalidator.NewReviewValidator(v),
			checker,
			loyalty,
			institutes,
			infra.Publisher,
			cfg,
		),
		Messages: messageservice.NewMessageService(
			messagerepo.NewPostgresMessageRepository(cfg),
			messagevalidator.NewMessageValidator(v),
			checker,
			infra.Publisher,
			cfg,
		),
		Gallery: galleryservice.NewGalleryService(
			galleryrepo.NewPostgresGalleryRepository(cfg),
			galleryvalidator.NewGalleryValidator(v),
			checker,
			institutes,
			cfg,
		),
		Workshops: workshopservice.NewWorkshopService(
			workshoprepo.NewPostgresWorkshopRepository(cfg),
			workshopvalidator.NewWorkshopValidator(v),
			checker,
			infra.Publisher,
			cfg,
		),
		Favorites: favoriteservice.NewFavoriteService(favoriterepo.NewPostgresFavoriteRepository(cfg), cfg),
	}
}

// Build returns the HTTP modules selected by enabled, in registration order.
func Build(cfg *config.Config, services *Services, enabled []string) ([]contracts.Module, error) {
	selected, err := Resolve(enabled)
	if err != nil {
		return nil, err
	}

	log := cfg.Log
	all := map[string]func() ([]contracts.Handler, error){
		Users: func() ([]contracts.Handler, error) {
			return []contracts.Handler{userhandler.NewUserHandler(services.Users, log)}, nil
		},
		Institutes: func() ([]contracts.Handler, error) {
			return []contracts.Handler{institutehandler.NewInstituteHandler(services.Institutes, log)}, nil
		},
		Catalog: func() ([]contracts.Handler, error) {
			return []contracts.Handler{cataloghandler.NewServiceHandler(services.Catalog, log)}, nil
		},
		Hours: func() ([]contracts.Handler, error) {
			return []contracts.Handler{hourshandler.NewHoursHandler(services.Hours, log)}, nil
		},
		Therapists: func() ([]contracts.Handler, error) {
			return []contracts.Handler{therapisthandler.NewTherapistHandler(services.Therapists, log)}, nil
		},
		Appointments: func() ([]contracts.Handler, error) {
			return []contracts.Handler{appointmenthandler.NewAppointmentHandler(services.Appointments, log)}, nil
		},
		Loyalty: func() ([]contracts.Handler, error) {
			return []contracts.Handler{loyaltyhandler.NewLoyaltyHandler(services.Loyalty, log)}, nil
		},
		Reviews: func() ([]contracts.Handler, error) {
			return []contracts.Handler{reviewhandler.NewReviewHandler(services.Reviews, log)}, nil
		},
		Messages: func() ([]contracts.Handler, error) {
			return []contracts.Handler{messagehandler.NewMessageHandler(services.Messages, log)}, nil
		},
		Gallery: func() ([]contracts.Handler, error) {
			return []contracts.Handler{galleryhandler.NewGalleryHandler(services.Gallery, log)}, nil
		},
		Workshops: func() ([]contracts.Handler, error) {
			return []contracts.Handler{workshophandler.NewWorkshopHandler(services.Workshops, log)}, nil
		},
		Favorites: func() ([]contracts.Handler, error) {
			return []contracts.Handler{favoritehandler.NewFavoriteHandler(services.Favorites, log)}, nil
		},
		Jobs: func() ([]contracts.Handler, error) {
			scheduler, err := jobs.NewScheduler(cfg, services.Appointments)
			if err != nil {
				return nil, err
			}
			return []contracts.Handler{jobs.NewTriggerHandler(scheduler, cfg.InternalSecret, log)}, nil
		},
	}

	out := make([]contracts.Module, 0, len(selected))
	for _, name := range selected {
		handlers, err := all[name]()
		if err != nil {
			return nil, fmt.Errorf("failed to build module %s: %w", name, err)
		}
		out = append(out, contracts.Module{Name: name, Handlers: handlers})
	}
	return out, nil
}

// Resolve expands "all", removes duplicates and rejects unknown module
// names. The result follows the canonical module order.
func Resolve(enabled []string) ([]string, error) {
	want := make(map[string]bool, len(enabled))
	for _, raw := range enabled {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case name == "":
			continue
		case name == All:
			for _, n := range names {
				want[n] = true
			}
		case slices.Contains(names, name):
			want[name] = true
		default:
			return nil, fmt.Errorf("unknown module %q (known: %s)", raw, strings.Join(names, ", "))
		}
	}
	if len(want) == 0 {
		return nil, fmt.Errorf("no modules enabled")
	}

	out := make([]string, 0, len(want))
	for _, n := range names {
		if want[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

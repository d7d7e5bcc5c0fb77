package web

// Flash messages shown to users.
const (
	MsgListingMissing = "Listing you requested for does not exist!"
	MsgGeocodeFailed  = "Geocoding failed. Please check the address."
	MsgCreated        = "New Listing Created!"
	MsgCreateFailed   = "Failed to create new listing."
	MsgImageRequired  = "Please upload an image of the listing."
	MsgUpdated        = "Listing Updated!"
	MsgUpdateFailed   = "Failed to update listing."
	MsgDeleted        = "Listing Deleted!"
	MsgDeleteFailed   = "Failed to delete listing."

	MsgReviewCreated = "New Review Created!"
	MsgReviewFailed  = "Failed to create review."
	MsgReviewDeleted = "Review Deleted!"
	MsgNotAuthor     = "You are not the author of this review!"

	MsgLoginRequired  = "You must be logged in to create listing!"
	MsgNotOwner       = "You are not the owner of this listing!"
	MsgWelcome        = "Welcome to Wanderlust!"
	MsgWelcomeBack    = "Welcome back to Wanderlust!"
	MsgBadCredentials = "Password or username is incorrect"
	MsgUserExists     = "A user with the given username is already registered"
	MsgSignupInvalid  = "Username, email and password are required."
	MsgLoggedOut      = "You are logged out!"
	MsgSomethingWrong = "Something went wrong. Please try again."
)

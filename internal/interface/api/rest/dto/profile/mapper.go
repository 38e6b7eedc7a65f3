package profile

func ToResponseProfile(uid, email, name string) Profile {
	if name == "" {
		name = "User"
	}

	return Profile{
		UID:   uid,
		Email: email,
		Name:  name,
	}
}
